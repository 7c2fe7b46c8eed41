package chat

import (
	"reflect"
	"testing"
)

func TestParseMessage(t *testing.T) {
	tests := []struct {
		name string
		line string
		want *Message
	}{
		{
			name: "full tag set",
			line: "id=abc-123;display-name=Bob;color=#FF0000;badges=moderator/1,subscriber/12 :bob!bob@bob.tmi.twitch.tv PRIVMSG #somechan :Hello world",
			want: &Message{
				ID:     "abc-123",
				User:   "Bob",
				Color:  "#FF0000",
				Body:   "Hello world",
				Badges: []Badge{{Set: "moderator", Version: "1"}, {Set: "subscriber", Version: "12"}},
			},
		},
		{
			name: "body is trimmed",
			line: "id=x;display-name=U PRIVMSG #c :  spaced out  ",
			want: &Message{ID: "x", User: "U", Body: "spaced out", Badges: []Badge{}},
		},
		{
			name: "missing id defaults to empty",
			line: "display-name=Someone;color=#00FF00 PRIVMSG #c :hi",
			want: &Message{User: "Someone", Color: "#00FF00", Body: "hi", Badges: []Badge{}},
		},
		{
			name: "missing display-name defaults to Unknown",
			line: "id=1;color= PRIVMSG #c :hi",
			want: &Message{ID: "1", User: "Unknown", Body: "hi", Badges: []Badge{}},
		},
		{
			name: "empty color stays unset",
			line: "id=1;display-name=A;color= PRIVMSG #c :hi",
			want: &Message{ID: "1", User: "A", Body: "hi", Badges: []Badge{}},
		},
		{
			name: "tag values taken verbatim",
			line: `id=1;display-name=A\sB PRIVMSG #c :hi`,
			want: &Message{ID: "1", User: `A\sB`, Body: "hi", Badges: []Badge{}},
		},
		{
			name: "body may contain colons",
			line: "id=1;display-name=A PRIVMSG #c :see: this: works",
			want: &Message{ID: "1", User: "A", Body: "see: this: works", Badges: []Badge{}},
		},
		{
			name: "no PRIVMSG delimiter",
			line: "id=1;display-name=A JOIN #c",
			want: nil,
		},
		{
			name: "no body delimiter",
			line: "id=1;display-name=A PRIVMSG #c",
			want: nil,
		},
		{
			name: "empty line",
			line: "",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseMessage(tt.line)
			if tt.want == nil {
				if got != nil {
					t.Fatalf("ParseMessage(%q) = %+v, want nil", tt.line, got)
				}
				return
			}
			if got == nil {
				t.Fatalf("ParseMessage(%q) = nil, want %+v", tt.line, tt.want)
			}
			if got.Channel != "" {
				t.Errorf("parser set Channel = %q; channel belongs to the read loop", got.Channel)
			}
			got.Channel = tt.want.Channel
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseMessage(%q) = %+v, want %+v", tt.line, got, tt.want)
			}
		})
	}
}

func TestParseBadges(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []Badge
	}{
		{"empty", "", []Badge{}},
		{"single pair", "vip/1", []Badge{{"vip", "1"}}},
		{"order preserved", "b/2,a/1", []Badge{{"b", "2"}, {"a", "1"}}},
		{"versionless entry dropped", "a/1,b,c/2", []Badge{{"a", "1"}, {"c", "2"}}},
		{"three part entry dropped", "a/1,c/2/3", []Badge{{"a", "1"}}},
		{"empty set dropped", "/1,a/2", []Badge{{"a", "2"}}},
		{"empty version dropped", "a/,b/3", []Badge{{"b", "3"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseBadges(tt.raw); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseBadges(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

package handler

import (
	"reflect"
	"testing"
)

func TestParseMentionLabels(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    []string
	}{
		{"single", "ping @Ava about the header", []string{"Ava"}},
		{"multiple", "@Ava @ben.lee please review", []string{"Ava", "ben.lee"}},
		{"duplicate once", "@Ava and again @Ava", []string{"Ava"}},
		{"bare at ignored", "email me @ noon", nil},
		{"punctuation ends label", "thanks @Ava!", []string{"Ava"}},
		{"underscore and dash", "cc @dev_ops-2", []string{"dev_ops-2"}},
		{"no mentions", "plain text", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseMentionLabels(tt.message)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseMentionLabels(%q) = %v, want %v", tt.message, got, tt.want)
			}
		})
	}
}

func TestResolveMentions(t *testing.T) {
	known := map[string]int64{"Ava": 10, "Ben": 20}

	ids, unresolved := ResolveMentions([]string{"Ava", "Ben"}, known)
	if !reflect.DeepEqual(ids, []int64{10, 20}) {
		t.Errorf("ids = %v, want [10 20]", ids)
	}
	if unresolved != nil {
		t.Errorf("unresolved = %v, want none", unresolved)
	}
}

func TestResolveMentionsCaseInsensitive(t *testing.T) {
	ids, unresolved := ResolveMentions([]string{"ava", "AVA"}, map[string]int64{"Ava": 10})
	if !reflect.DeepEqual(ids, []int64{10}) {
		t.Errorf("ids = %v, want [10]", ids)
	}
	if unresolved != nil {
		t.Errorf("unresolved = %v, want none", unresolved)
	}
}

func TestResolveMentionsUnknownStaysLiteral(t *testing.T) {
	ids, unresolved := ResolveMentions([]string{"Ava", "Nobody"}, map[string]int64{"Ava": 10})
	if !reflect.DeepEqual(ids, []int64{10}) {
		t.Errorf("ids = %v, want [10]", ids)
	}
	if !reflect.DeepEqual(unresolved, []string{"Nobody"}) {
		t.Errorf("unresolved = %v, want [Nobody]", unresolved)
	}
}

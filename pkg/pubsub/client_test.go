package pubsub

import (
	"reflect"
	"testing"

	"github.com/angelmondragon/foodrun-backend/pkg/config"
)

func TestTopicResourceName(t *testing.T) {
	cases := []struct {
		project string
		name    string
		want    string
	}{
		{"foodrun", "orders", "projects/foodrun/topics/orders"},
		{"foodrun", " orders ", "projects/foodrun/topics/orders"},
		{"foodrun", "projects/other/topics/ledger", "projects/other/topics/ledger"},
		{"", "orders", ""},
		{"foodrun", "", ""},
	}
	for _, tc := range cases {
		if got := TopicResourceName(tc.project, tc.name); got != tc.want {
			t.Fatalf("TopicResourceName(%q, %q) = %q, want %q", tc.project, tc.name, got, tc.want)
		}
	}
}

func TestTopicNamesSkipsBlanksAndDuplicates(t *testing.T) {
	got := TopicNames(config.PubSubConfig{
		OrdersTopic:       "events",
		LedgerTopic:       "events",
		NotificationTopic: " ",
	})
	if want := []string{"events"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("TopicNames = %v, want %v", got, want)
	}
}

package mqtt

import "testing"

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"service command", topics.ServiceCommand("scene_update"), "scenecapture/service/scene_update"},
		{"service result", topics.ServiceResult("scene_get"), "scenecapture/result/scene_get"},
		{"all service commands", topics.AllServiceCommands(), "scenecapture/service/+"},
		{"system status", topics.SystemStatus(), "scenecapture/system/status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestServiceFromCommandTopic(t *testing.T) {
	tests := []struct {
		topic string
		want  string
	}{
		{"scenecapture/service/update", "update"},
		{"scenecapture/service/scene_get", "scene_get"},
		{"scenecapture/service/", ""},
		{"scenecapture/service/a/b", ""},
		{"scenecapture/result/update", ""},
		{"other/topic", ""},
	}

	for _, tt := range tests {
		if got := ServiceFromCommandTopic(tt.topic); got != tt.want {
			t.Errorf("ServiceFromCommandTopic(%q) = %q, want %q", tt.topic, got, tt.want)
		}
	}
}

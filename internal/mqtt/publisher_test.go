package mqtt

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ladle-app/ladle/internal/config"
)

func TestLoadOrCreateInstanceID_CreatesFile(t *testing.T) {
	dir := t.TempDir()

	id, err := LoadOrCreateInstanceID(dir)
	if err != nil {
		t.Fatalf("LoadOrCreateInstanceID() error = %v", err)
	}
	if id == "" {
		t.Fatal("LoadOrCreateInstanceID() returned empty string")
	}

	data, err := os.ReadFile(filepath.Join(dir, "instance_id"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if got := strings.TrimSpace(string(data)); got != id {
		t.Errorf("file content = %q, want %q", got, id)
	}
}

func TestLoadOrCreateInstanceID_ReturnsExisting(t *testing.T) {
	dir := t.TempDir()

	first, err := LoadOrCreateInstanceID(dir)
	if err != nil {
		t.Fatalf("first call error = %v", err)
	}
	second, err := LoadOrCreateInstanceID(dir)
	if err != nil {
		t.Fatalf("second call error = %v", err)
	}
	if second != first {
		t.Errorf("second = %q, want %q (should be stable)", second, first)
	}
}

func TestNewDeviceInfo(t *testing.T) {
	info := NewDeviceInfo("test-instance-id", "kitchen-ladle")
	if info.Name != "kitchen-ladle" {
		t.Errorf("Name = %q", info.Name)
	}
	if len(info.Identifiers) != 1 || info.Identifiers[0] != "test-instance-id" {
		t.Errorf("Identifiers = %v, want [test-instance-id]", info.Identifiers)
	}
}

func TestPublisherTopicPaths(t *testing.T) {
	cfg := config.MQTTConfig{
		Broker:          "mqtt://localhost:1883",
		DeviceName:      "kitchen-ladle",
		DiscoveryPrefix: "homeassistant",
	}
	p := New(cfg, "test-id", nil, nil)

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"baseTopic", p.baseTopic(), "ladle/kitchen-ladle"},
		{"availabilityTopic", p.availabilityTopic(), "ladle/kitchen-ladle/availability"},
		{"stateTopic meals_today", p.stateTopic("meals_today"), "ladle/kitchen-ladle/meals_today/state"},
		{"discoveryTopic sensor uptime", p.discoveryTopic("sensor", "uptime"), "homeassistant/sensor/kitchen-ladle/uptime/config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestPublisherSensorDefinitions(t *testing.T) {
	cfg := config.MQTTConfig{
		Broker:             "mqtt://localhost:1883",
		DeviceName:         "kitchen-ladle",
		DiscoveryPrefix:    "homeassistant",
		PublishIntervalSec: 60,
	}
	p := New(cfg, "instance-123", nil, nil)

	defs := p.sensorDefinitions()
	if len(defs) != 5 {
		t.Fatalf("sensor definitions = %d, want 5", len(defs))
	}

	seen := map[string]bool{}
	for _, d := range defs {
		if seen[d.config.UniqueID] {
			t.Errorf("duplicate unique_id %q", d.config.UniqueID)
		}
		seen[d.config.UniqueID] = true

		if d.config.StateTopic == "" || d.config.AvailabilityTopic == "" {
			t.Errorf("sensor %q missing topics: %+v", d.entitySuffix, d.config)
		}
		if _, err := json.Marshal(d.config); err != nil {
			t.Errorf("sensor %q payload does not marshal: %v", d.entitySuffix, err)
		}
	}

	for _, want := range []string{"uptime", "version", "meals_today", "grocery_items", "households"} {
		if !seen["instance-123_"+want] {
			t.Errorf("missing sensor %q", want)
		}
	}
}

package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	sharedEvents "github.com/davicafu/passport-notifier/internal/shared/events"
)

func fixedClock() time.Time { return time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC) }

func TestBuild_EveryKnownTypeWithEmptyPayload(t *testing.T) {
	b := NewBuilder(fixedClock)

	for _, et := range sharedEvents.AllEventTypes {
		t.Run(string(et), func(t *testing.T) {
			tpl := b.Build(et, map[string]interface{}{})
			assert.NotEmpty(t, tpl.Title)
			assert.NotEmpty(t, tpl.Body)
			assert.NotEqual(t, "Notification", tpl.Title)
		})
	}
}

func TestBuild_UnknownType(t *testing.T) {
	tpl := NewBuilder(fixedClock).Build("invoice.paid", map[string]interface{}{"title": "x"})

	assert.Equal(t, Template{Title: "Notification", Body: "You have a new notification from the system."}, tpl)
}

func TestBuild_PassportCreated(t *testing.T) {
	tpl := NewBuilder(fixedClock).Build(sharedEvents.PassportCreated, map[string]interface{}{
		"passportId":        "p1",
		"batteryIdentifier": "B-1",
		"modelName":         "M1",
		"manufacturerName":  "Acme",
	})

	assert.Equal(t, "New Battery Passport Created", tpl.Title)
	assert.Equal(t, "A new battery passport has been created successfully.\n\nBattery Identifier: B-1\nModel: M1\nManufacturer: Acme", tpl.Body)
}

func TestBuild_Placeholders(t *testing.T) {
	b := NewBuilder(fixedClock)

	tests := []struct {
		name     string
		et       sharedEvents.EventType
		payload  map[string]interface{}
		contains string
	}{
		{"modelo ausente", sharedEvents.PassportCreated, map[string]interface{}{"batteryIdentifier": "B-1"}, "Model: N/A"},
		{"campos actualizados", sharedEvents.PassportUpdated, map[string]interface{}{"updatedFields": []interface{}{"a", "b"}}, "Updated Fields: a, b"},
		{"sin campos", sharedEvents.PassportUpdated, nil, "Updated Fields: N/A"},
		{"borrado por sistema", sharedEvents.PassportDeleted, nil, "Deleted By: System"},
		{"tamaño en MB", sharedEvents.DocumentUploaded, map[string]interface{}{"fileSize": 1572864.0}, "Size: 1.50 MB"},
		{"tamaño ausente", sharedEvents.DocumentUploaded, map[string]interface{}{"fileName": "a.pdf"}, "Size: N/A"},
		{"documento borrado", sharedEvents.DocumentDeleted, map[string]interface{}{"deletedBy": "u1"}, "Deleted By: u1"},
		{"alerta", sharedEvents.SystemAlert, map[string]interface{}{"message": "disk full"}, "disk full"},
		{"login con hora", sharedEvents.UserLogin, map[string]interface{}{"loginAt": "2026-01-02T03:04:05Z"}, "Fri, 02 Jan 2026 03:04:05 UTC"},
		{"login sin hora", sharedEvents.UserLogin, nil, "Mon, 19 Oct 2026 08:00:00 UTC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tpl := b.Build(tt.et, tt.payload)
			assert.Contains(t, tpl.Body, tt.contains)
		})
	}
}

func TestBuild_GeneralInfo(t *testing.T) {
	b := NewBuilder(fixedClock)

	custom := b.Build(sharedEvents.GeneralInfo, map[string]interface{}{"title": "Maintenance", "message": "Tonight"})
	assert.Equal(t, Template{Title: "Maintenance", Body: "Tonight"}, custom)

	fallback := b.Build(sharedEvents.GeneralInfo, nil)
	assert.Equal(t, "Information", fallback.Title)
}

func TestBuildEvent_LoginUsesEventTime(t *testing.T) {
	evt := sharedEvents.NewDomainEvent(sharedEvents.UserLogin, nil, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	tpl := NewBuilder(fixedClock).BuildEvent(evt)

	assert.Contains(t, tpl.Body, "Sun, 01 Mar 2026 12:00:00 UTC")
}

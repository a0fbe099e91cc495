package events

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Payload es la unión etiquetada de los payloads conocidos.
// Cada variante lleva sólo los campos que usa su template; el resto se ignora.
type Payload interface {
	EventType() EventType
}

type PassportCreatedPayload struct {
	PassportID        string
	BatteryIdentifier string
	ModelName         string
	ManufacturerName  string
	CreatedBy         string
}

type PassportUpdatedPayload struct {
	PassportID        string
	BatteryIdentifier string
	UpdatedFields     []string
	UpdatedBy         string
}

type PassportDeletedPayload struct {
	PassportID        string
	BatteryIdentifier string
	DeletedBy         string
}

type DocumentUploadedPayload struct {
	DocumentID string
	FileName   string
	FileSize   float64 // bytes; 0 = ausente
	UploadedBy string
}

type DocumentDeletedPayload struct {
	DocumentID string
	FileName   string
	DeletedBy  string
}

type UserRegisteredPayload struct {
	UserID string
	Email  string
}

type UserLoginPayload struct {
	UserID  string
	Email   string
	LoginAt time.Time
}

type SystemAlertPayload struct {
	Message string
}

type GeneralInfoPayload struct {
	Title   string
	Message string
}

// UnknownPayload se usa para tipos fuera del enumerado.
type UnknownPayload struct {
	Type   EventType
	Fields map[string]interface{}
}

func (PassportCreatedPayload) EventType() EventType { return PassportCreated }
func (PassportUpdatedPayload) EventType() EventType { return PassportUpdated }
func (PassportDeletedPayload) EventType() EventType { return PassportDeleted }
func (DocumentUploadedPayload) EventType() EventType { return DocumentUploaded }
func (DocumentDeletedPayload) EventType() EventType { return DocumentDeleted }
func (UserRegisteredPayload) EventType() EventType { return UserRegistered }
func (UserLoginPayload) EventType() EventType { return UserLogin }
func (SystemAlertPayload) EventType() EventType { return SystemAlert }
func (GeneralInfoPayload) EventType() EventType { return GeneralInfo }
func (p UnknownPayload) EventType() EventType { return p.Type }

// PayloadFor construye la variante tipada. Nunca falla: un campo ausente o de
// tipo inesperado queda con su valor cero.
func PayloadFor(t EventType, m map[string]interface{}) Payload {
	switch t {
	case PassportCreated:
		return PassportCreatedPayload{
			PassportID:        stringField(m, "passportId"),
			BatteryIdentifier: stringField(m, "batteryIdentifier"),
			ModelName:         stringField(m, "modelName"),
			ManufacturerName:  stringField(m, "manufacturerName"),
			CreatedBy:         stringField(m, "createdBy"),
		}
	case PassportUpdated:
		return PassportUpdatedPayload{
			PassportID:        stringField(m, "passportId"),
			BatteryIdentifier: stringField(m, "batteryIdentifier"),
			UpdatedFields:     stringSliceField(m, "updatedFields"),
			UpdatedBy:         stringField(m, "updatedBy"),
		}
	case PassportDeleted:
		return PassportDeletedPayload{
			PassportID:        stringField(m, "passportId"),
			BatteryIdentifier: stringField(m, "batteryIdentifier"),
			DeletedBy:         stringField(m, "deletedBy"),
		}
	case DocumentUploaded:
		return DocumentUploadedPayload{
			DocumentID: stringField(m, "documentId"),
			FileName:   stringField(m, "fileName"),
			FileSize:   floatField(m, "fileSize"),
			UploadedBy: stringField(m, "uploadedBy"),
		}
	case DocumentDeleted:
		return DocumentDeletedPayload{
			DocumentID: stringField(m, "documentId"),
			FileName:   stringField(m, "fileName"),
			DeletedBy:  stringField(m, "deletedBy"),
		}
	case UserRegistered:
		return UserRegisteredPayload{
			UserID: stringField(m, "userId"),
			Email:  stringField(m, "email"),
		}
	case UserLogin:
		return UserLoginPayload{
			UserID:  stringField(m, "userId"),
			Email:   stringField(m, "email"),
			LoginAt: timeField(m, "loginAt"),
		}
	case SystemAlert:
		return SystemAlertPayload{Message: stringField(m, "message")}
	case GeneralInfo:
		return GeneralInfoPayload{
			Title:   stringField(m, "title"),
			Message: stringField(m, "message"),
		}
	default:
		return UnknownPayload{Type: t, Fields: copyPayload(m)}
	}
}

// ---------------- Lectura tolerante de campos ----------------

func stringField(m map[string]interface{}, key string) string {
	switch v := m[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

func floatField(m map[string]interface{}, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		f, _ := v.Float64()
		return f
	case string:
		f, _ := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f
	default:
		return 0
	}
}

func stringSliceField(m map[string]interface{}, key string) []string {
	switch v := m[key].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func timeField(m map[string]interface{}, key string) time.Time {
	s, ok := m[key].(string)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

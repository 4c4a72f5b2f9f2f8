package attendance

import (
	"encoding/json"
)

// qrPayloadType is the discriminator embedded in student attendance QR codes.
const qrPayloadType = "student_attendance"

// qrPayload is the structure encoded in a student's QR code. Only StudentID
// and Type are trusted for identity; the remaining fields are informational
// card decoration and are never used for the lookup, so a stale or forged
// name cannot attribute attendance to the wrong roll.
type qrPayload struct {
	StudentID  string `json:"student_id"`
	Type       string `json:"type"`
	Name       string `json:"name,omitempty"`
	Class      string `json:"class,omitempty"`
	Section    string `json:"section,omitempty"`
	RollNumber int    `json:"roll_number,omitempty"`
}

// decodeQRPayload extracts the student ID from a scanned QR payload.
// Malformed structure, a missing ID or a wrong payload type all fail with a
// ValidationError; the canonical identity check against the roster happens
// at the caller.
func decodeQRPayload(data string) (string, error) {
	if data == "" {
		return "", validationErrorf("empty qr payload")
	}

	var payload qrPayload
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		return "", validationErrorf("malformed qr payload: %v", err)
	}
	if payload.Type != qrPayloadType {
		return "", validationErrorf("unexpected qr payload type %q", payload.Type)
	}
	if payload.StudentID == "" {
		return "", validationErrorf("qr payload missing student_id")
	}
	return payload.StudentID, nil
}

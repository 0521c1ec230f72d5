package business

import (
	"testing"

	"tpabridge/internal/app/domains/model"
)

func TestParseSubmitJob(t *testing.T) {
	t.Run("roundtrip", func(t *testing.T) {
		data, err := EncodeSubmitJob(&model.SubmitJobData{
			RequestID:   "trace-1",
			ActionType:  model.ActionTypeSubmit,
			ID:          "req-1",
			Kind:        "claim",
			Attempt:     2,
			MaxAttempts: 3,
		})
		if err != nil {
			t.Fatalf("EncodeSubmitJob failed: %v", err)
		}

		parsed, err := ParseSubmitJob(data)
		if err != nil {
			t.Fatalf("ParseSubmitJob failed: %v", err)
		}
		if parsed.ID != "req-1" || parsed.Attempt != 2 || parsed.MaxAttempts != 3 {
			t.Errorf("parsed = %+v, want req-1 attempt 2/3", parsed)
		}
	})

	t.Run("generates trace id when absent", func(t *testing.T) {
		data, _ := EncodeSubmitJob(&model.SubmitJobData{
			ActionType: model.ActionTypeSubmit,
			ID:         "req-1",
			Kind:       "claim",
		})
		parsed, err := ParseSubmitJob(data)
		if err != nil {
			t.Fatalf("ParseSubmitJob failed: %v", err)
		}
		if parsed.RequestID == "" {
			t.Error("request id should be generated when absent")
		}
	})

	t.Run("rejects malformed payloads", func(t *testing.T) {
		cases := []struct {
			name string
			raw  string
		}{
			{"not json", "{broken"},
			{"nil payload", `{}`},
			{"nil data", `{"payload":{}}`},
			{"unknown action", `{"payload":{"data":{"action_type":"other","id":"req-1"}}}`},
			{"empty id", `{"payload":{"data":{"action_type":"tpa_submit","id":""}}}`},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				if _, err := ParseSubmitJob([]byte(tc.raw)); err == nil {
					t.Error("want parse error")
				}
			})
		}
	})
}

package llm

import "testing"

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "bare object",
			input: `{"question": "When did it start?"}`,
			want:  `{"question": "When did it start?"}`,
		},
		{
			name:  "fenced json",
			input: "Here you go:\n```json\n{\"code\": \"A1\"}\n```\nanything else?",
			want:  `{"code": "A1"}`,
		},
		{
			name:  "fenced without language tag",
			input: "```\n{\"code\": \"A1\"}\n```",
			want:  `{"code": "A1"}`,
		},
		{
			name:  "object embedded in prose",
			input: `Sure. {"eliminated_code": "B2", "reasoning": "ruled out"} Hope that helps.`,
			want:  `{"eliminated_code": "B2", "reasoning": "ruled out"}`,
		},
		{
			name:    "no json at all",
			input:   "I cannot answer that.",
			wantErr: true,
		},
		{
			name:    "empty string",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

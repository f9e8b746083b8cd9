package flow

import "testing"

func TestStepIndexFromPath(t *testing.T) {
	tests := []struct {
		path string
		want int
	}{
		{PathStep1, 0},
		{PathStep2, 1},
		{PathStep3, 2},
		{PathStep4, 3},
		{PathHome, 0},
		{"/unknown", 0},
	}
	for _, tt := range tests {
		if got := StepIndexFromPath(tt.path); got != tt.want {
			t.Errorf("StepIndexFromPath(%q) = %d, want %d", tt.path, got, tt.want)
		}
	}
}

func TestNextAndPreviousStep(t *testing.T) {
	if next, ok := NextStepPath(PathStep1); !ok || next != PathStep2 {
		t.Errorf("NextStepPath(step1) = %q, %v", next, ok)
	}
	if next, ok := NextStepPath(PathStep3); !ok || next != PathStep4 {
		t.Errorf("NextStepPath(step3) = %q, %v", next, ok)
	}
	if _, ok := NextStepPath(PathStep4); ok {
		t.Error("после последнего шага следующего нет")
	}

	if prev := PreviousStepPath(PathStep1); prev != PathHome {
		t.Errorf("PreviousStepPath(step1) = %q, want /", prev)
	}
	if prev := PreviousStepPath(PathStep3); prev != PathStep2 {
		t.Errorf("PreviousStepPath(step3) = %q", prev)
	}
	if p := PathFromStepIndex(7); p != PathHome {
		t.Errorf("PathFromStepIndex(7) = %q", p)
	}
}

func TestRedirectURLs(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{CustomerInfoURL("abc"), "/step2?token=abc"},
		{UploadURL("abc"), "/step1?token=abc"},
		{ConfirmationURL("c 1"), "/step3?cart=c+1"},
		{PaymentURL("c1"), "/step4?cart=c1"},
		{ThanksURL("PH-000001"), "/thanks?order=PH-000001"},
		{CustomerInfoURL(""), "/step2"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestStepsConfig(t *testing.T) {
	if len(Steps) != 4 {
		t.Fatalf("шагов %d, ожидалось 4", len(Steps))
	}
	if Steps[0].ID != "upload" || Steps[0].Description != "最大20枚" {
		t.Errorf("первый шаг: %+v", Steps[0])
	}
}

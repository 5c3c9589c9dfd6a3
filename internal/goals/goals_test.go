package goals

import (
	"testing"
)

var testMessages = Messages{
	NameTooShort:    "name too short",
	InvalidEmail:    "invalid email",
	ProjectTooShort: "need more detail",
}

// ── per-goal validation ──

func TestValidateName(t *testing.T) {
	r := NewRegistry(testMessages)

	tests := []struct {
		in    string
		valid bool
	}{
		{"Juan Pérez", true},
		{"Li", true},
		{"  Ana  ", true},
		{"J", false},
		{" x ", false},
		{"", false},
	}

	for _, tt := range tests {
		got := r.Validate(GoalName, tt.in)
		if got.Valid != tt.valid {
			t.Errorf("Validate(name, %q).Valid = %v, want %v", tt.in, got.Valid, tt.valid)
		}
		if !tt.valid && got.Error != testMessages.NameTooShort {
			t.Errorf("Validate(name, %q).Error = %q, want %q", tt.in, got.Error, testMessages.NameTooShort)
		}
	}
}

func TestValidateEmail(t *testing.T) {
	r := NewRegistry(testMessages)

	tests := []struct {
		in    string
		valid bool
	}{
		{"juan@example.com", true},
		{"JUAN@EXAMPLE.COM", true},
		{"  a@b.co  ", true},
		{"first.last@sub.domain.org", true},
		{"not-an-email", false},
		{"missing-at.com", false},
		{"two@@example.com", false},
		{"a@b@c.com", false},
		{"nodot@examplecom", false},
		{"dotfirst@.com", false},
		{"@example.com", false},
		{"spaces in@example.com", false},
		{"", false},
	}

	for _, tt := range tests {
		got := r.Validate(GoalEmail, tt.in)
		if got.Valid != tt.valid {
			t.Errorf("Validate(email, %q).Valid = %v, want %v", tt.in, got.Valid, tt.valid)
		}
	}
}

func TestValidateProject(t *testing.T) {
	r := NewRegistry(testMessages)

	if got := r.Validate(GoalProject, "una tienda online con pagos"); !got.Valid {
		t.Errorf("long description rejected: %q", got.Error)
	}
	if got := r.Validate(GoalProject, "una web"); got.Valid {
		t.Error("8-char description accepted, want rejection")
	}
	if got := r.Validate(GoalProject, "   padded out    "); !got.Valid {
		t.Errorf("trimmed 10-char description rejected: %q", got.Error)
	}
}

func TestValidatePhoneAlwaysValid(t *testing.T) {
	r := NewRegistry(testMessages)

	for _, in := range []string{"+54 11 5555-1234", "no", "whatever", ""} {
		if got := r.Validate(GoalPhone, in); !got.Valid {
			t.Errorf("Validate(phone, %q).Valid = false, want true", in)
		}
	}
}

// ── aggregate evaluation ──

func TestEvaluateAllRequiredComplete(t *testing.T) {
	r := NewRegistry(testMessages)

	fields := map[string]string{
		GoalName:    "Juan Pérez",
		GoalEmail:   "juan@example.com",
		GoalProject: "necesito una tienda online",
	}

	ev := r.Evaluate(fields)
	if !ev.AllRequiredComplete {
		t.Errorf("AllRequiredComplete = false with all required set; missing = %v", ev.Missing)
	}
	if len(ev.Missing) != 0 {
		t.Errorf("Missing = %v, want empty", ev.Missing)
	}
	// 3 of 4 goals captured (phone unset).
	if ev.ProgressPercent != 75 {
		t.Errorf("ProgressPercent = %d, want 75", ev.ProgressPercent)
	}
}

func TestEvaluatePhoneIgnoredForCompletion(t *testing.T) {
	r := NewRegistry(testMessages)

	without := r.Evaluate(map[string]string{
		GoalName:    "Ana",
		GoalEmail:   "ana@example.com",
		GoalProject: "app móvil para mi negocio",
	})
	with := r.Evaluate(map[string]string{
		GoalName:    "Ana",
		GoalEmail:   "ana@example.com",
		GoalPhone:   "+34 600 000 000",
		GoalProject: "app móvil para mi negocio",
	})

	if !without.AllRequiredComplete || !with.AllRequiredComplete {
		t.Error("phone presence changed AllRequiredComplete")
	}
	if with.ProgressPercent != 100 {
		t.Errorf("ProgressPercent with phone = %d, want 100", with.ProgressPercent)
	}
}

func TestEvaluateMissingOrder(t *testing.T) {
	r := NewRegistry(testMessages)

	ev := r.Evaluate(map[string]string{GoalEmail: "a@b.co"})
	want := []string{GoalName, GoalProject}
	if len(ev.Missing) != len(want) {
		t.Fatalf("Missing = %v, want %v", ev.Missing, want)
	}
	for i := range want {
		if ev.Missing[i] != want[i] {
			t.Fatalf("Missing = %v, want %v (capture order)", ev.Missing, want)
		}
	}
	if ev.AllRequiredComplete {
		t.Error("AllRequiredComplete = true with missing goals")
	}
}

func TestEvaluateInvalidStoredValue(t *testing.T) {
	r := NewRegistry(testMessages)

	// A stored value that no longer validates must not count as satisfied.
	ev := r.Evaluate(map[string]string{
		GoalName:    "X",
		GoalEmail:   "juan@example.com",
		GoalProject: "necesito una tienda online",
	})
	if ev.AllRequiredComplete {
		t.Error("AllRequiredComplete = true with invalid stored name")
	}
}

func TestEvaluateEmpty(t *testing.T) {
	r := NewRegistry(testMessages)

	ev := r.Evaluate(map[string]string{})
	if ev.AllRequiredComplete {
		t.Error("AllRequiredComplete = true on empty fields")
	}
	if ev.ProgressPercent != 0 {
		t.Errorf("ProgressPercent = %d, want 0", ev.ProgressPercent)
	}
}

func TestLookupAndOrder(t *testing.T) {
	r := NewRegistry(testMessages)

	wantOrder := []string{GoalName, GoalEmail, GoalPhone, GoalProject}
	defs := r.Definitions()
	if len(defs) != len(wantOrder) {
		t.Fatalf("got %d definitions, want %d", len(defs), len(wantOrder))
	}
	for i, d := range defs {
		if d.Name != wantOrder[i] {
			t.Errorf("Definitions()[%d] = %q, want %q", i, d.Name, wantOrder[i])
		}
	}

	if _, ok := r.Lookup(GoalEmail); !ok {
		t.Error("Lookup(email) not found")
	}
	if _, ok := r.Lookup("company"); ok {
		t.Error("Lookup(company) found, want miss")
	}
}

package reconcile

import (
	"errors"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name                  string
		base, local, external any
		want                  Class
	}{
		{"unchanged", 0.5, 0.5, 0.5, Unchanged},
		{"local only", 0.5, 0.3, 0.5, LocalOnly},
		{"external only", 0.5, 0.5, 0.8, ExternalOnly},
		{"conflicting", 0.5, 0.3, 0.8, Conflicting},
		{"convergent", 0.5, 0.8, 0.8, Convergent},
		{"nil and empty equal", []string(nil), []string{}, []string{}, Unchanged},
		{"list conflict", []string{"a"}, []string{"b"}, []string{"c"}, Conflicting},
		{"map external", map[string]any{"w": 1.0}, map[string]any{"w": 1.0}, map[string]any{"w": 2.0}, ExternalOnly},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.base, tt.local, tt.external); got != tt.want {
				t.Errorf("Classify = %v, want %v", got, tt.want)
			}
		})
	}
}

// Every triple over a three-value domain gets exactly one outcome per
// policy, and the non-conflicting policy never loses a one-sided change.
func TestDecide_Total(t *testing.T) {
	domain := []int{1, 2, 3}
	policies := []Policy{RejectExternal, AcceptAll, AcceptNonConflicting}
	for _, b := range domain {
		for _, l := range domain {
			for _, x := range domain {
				c := Classify(b, l, x)
				for _, p := range policies {
					d := Decision{Base: b, Local: l, External: x, Class: c, Outcome: decide(p, c)}
					final := d.Final()
					if final == nil {
						t.Fatalf("%v %v: no value for (%d,%d,%d)", p, c, b, l, x)
					}
					switch p {
					case AcceptAll:
						if final != x {
							t.Errorf("accept-all (%d,%d,%d) = %v, want external", b, l, x, final)
						}
					case RejectExternal:
						if final != l {
							t.Errorf("reject (%d,%d,%d) = %v, want local", b, l, x, final)
						}
					case AcceptNonConflicting:
						switch c {
						case LocalOnly, Conflicting:
							if final != l {
								t.Errorf("non-conflicting %v (%d,%d,%d) = %v, want local", c, b, l, x, final)
							}
						case ExternalOnly:
							if final != x {
								t.Errorf("non-conflicting %v (%d,%d,%d) = %v, want external", c, b, l, x, final)
							}
						}
					}
				}
			}
		}
	}
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in   string
		want Policy
	}{
		{"reject", RejectExternal},
		{"Accept_All", AcceptAll},
		{"accept-non-conflicting", AcceptNonConflicting},
		{" merge ", AcceptNonConflicting},
	}
	for _, tt := range tests {
		got, err := ParsePolicy(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParsePolicy(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
		if back, _ := ParsePolicy(got.String()); back != got {
			t.Errorf("ParsePolicy(%v.String()) = %v", got, back)
		}
	}
	if _, err := ParsePolicy("yolo"); !errors.Is(err, ErrUnknownPolicy) {
		t.Errorf("ParsePolicy(yolo) error = %v", err)
	}
}

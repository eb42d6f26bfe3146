package fingerprint

import "testing"

func TestSignatureString(t *testing.T) {
	tests := []struct {
		sig      Signature
		expected string
	}{
		{0, "0000000000000000"},
		{0xF, "000000000000000f"},
		{0xFFFFFFFFFFFFFFFF, "ffffffffffffffff"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.sig.String(); got != tt.expected {
				t.Errorf("String() = %q, want %q", got, tt.expected)
			}
			parsed, err := ParseSignature(tt.expected)
			if err != nil {
				t.Fatalf("ParseSignature failed: %v", err)
			}
			if parsed != tt.sig {
				t.Errorf("ParseSignature(%q) = %x, want %x", tt.expected, parsed, tt.sig)
			}
		})
	}
}

func TestParseSignature_Invalid(t *testing.T) {
	for _, s := range []string{"", "abc", "zzzzzzzzzzzzzzzz", "00000000000000000"} {
		if _, err := ParseSignature(s); err == nil {
			t.Errorf("ParseSignature(%q) should fail", s)
		}
	}
}

func TestSignatureVector(t *testing.T) {
	sig := Signature(0x8000000000000001)

	vec := sig.Vector()

	if len(vec) != 64 {
		t.Fatalf("expected 64 components, got %d", len(vec))
	}
	if vec[0] != 1 || vec[63] != 1 {
		t.Errorf("expected first and last components set, got %v and %v", vec[0], vec[63])
	}
	for i := 1; i < 63; i++ {
		if vec[i] != 0 {
			t.Fatalf("component %d should be 0", i)
		}
	}

	back, err := FromVector(vec)
	if err != nil {
		t.Fatalf("FromVector failed: %v", err)
	}
	if back != sig {
		t.Errorf("FromVector() = %x, want %x", back, sig)
	}
}

func TestFromVector_WrongLength(t *testing.T) {
	if _, err := FromVector(make([]float32, 10)); err == nil {
		t.Error("FromVector should reject vectors of the wrong length")
	}
}

func TestL1DistanceMatchesHamming(t *testing.T) {
	a := Signature(0xF0F0F0F0F0F0F0F0)
	b := Signature(0xF0F0F0F0F0F0F0FF)

	if got := L1Distance(a.Vector(), b.Vector()); int(got) != HammingDistance(a, b) {
		t.Errorf("L1Distance = %v, want %d", got, HammingDistance(a, b))
	}
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package privacy

import (
	"strings"
	"sync"
	"testing"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New()
	if err != nil {
		t.Fatalf("failed to initialize engine: %v", err)
	}
	return e
}

func TestEngine_Scan(t *testing.T) {
	engine := newTestEngine(t)

	tests := []struct {
		name          string
		input         string
		wantClass     string
		wantPatternID string
	}{
		{
			name:  "plain question",
			input: "Gaziantep'te 50000000 TL'lik otel yatırımı teşvik alır mı?",
		},
		{
			name:  "large amount is not an identity number",
			input: "10000000000 TL tutarında yatırım",
		},
		{
			name:          "identity number",
			input:         "TC kimlik numaram 10000000146, başvuru yapabilir miyim?",
			wantClass:     "identity",
			wantPatternID: "TC_KIMLIK_NO",
		},
		{
			name:          "labelled tax number",
			input:         "Vergi No: 1234567890 olan şirketimiz",
			wantClass:     "identity",
			wantPatternID: "VERGI_KIMLIK_NO",
		},
		{
			name:          "spaced iban",
			input:         "Hesabım TR33 0006 1005 1978 6457 8413 26",
			wantClass:     "financial",
			wantPatternID: "IBAN_TR",
		},
		{
			name:          "card number",
			input:         "kart 4111 1111 1111 1111 ile ödeme",
			wantClass:     "financial",
			wantPatternID: "CARD_NUMBER",
		},
		{
			name:          "email",
			input:         "bana yatirimci@example.com.tr adresinden ulaşın",
			wantClass:     "contact",
			wantPatternID: "EMAIL_ADDRESS",
		},
		{
			name:          "mobile phone",
			input:         "Telefon: 0532 123 45 67",
			wantClass:     "contact",
			wantPatternID: "PHONE_TR",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			findings := engine.Scan(tc.input)
			class := engine.Classify(tc.input)

			if tc.wantClass == "" {
				if len(findings) > 0 {
					t.Errorf("expected no findings, got %s", findings[0].PatternID)
				}
				if class != Public {
					t.Errorf("expected %q, got %q", Public, class)
				}
				return
			}

			if len(findings) == 0 {
				t.Fatalf("expected %s, got no findings", tc.wantPatternID)
			}
			if findings[0].PatternID != tc.wantPatternID {
				t.Errorf("expected pattern %s, got %s", tc.wantPatternID, findings[0].PatternID)
			}
			if findings[0].Classification != tc.wantClass {
				t.Errorf("expected classification %s, got %s", tc.wantClass, findings[0].Classification)
			}
			if class != tc.wantClass {
				t.Errorf("Classify mismatch: expected %s, got %s", tc.wantClass, class)
			}
		})
	}
}

func TestEngine_Redact(t *testing.T) {
	engine := newTestEngine(t)
	in := "Ben 10000000146, e-posta a@b.co, Bursa'da OSB içinde fabrika kuracağım."

	out, findings := engine.Redact(in)
	want := "Ben [TC_KIMLIK_NO], e-posta [EMAIL_ADDRESS], Bursa'da OSB içinde fabrika kuracağım."
	if out != want {
		t.Errorf("got %q, want %q", out, want)
	}
	if len(findings) != 2 {
		t.Fatalf("expected 2 findings, got %d", len(findings))
	}
	if findings[0].Start > findings[1].Start {
		t.Error("findings are not ordered by position")
	}

	clean := "Van'da eğitim yatırımı"
	if got, f := engine.Redact(clean); got != clean || f != nil {
		t.Errorf("clean text changed: %q %v", got, f)
	}
}

func TestEngine_PriorityOrder(t *testing.T) {
	engine := newTestEngine(t)
	names := engine.Classifications()
	want := []string{"identity", "financial", "contact"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("got %v, want %v", names, want)
	}
}

func TestNewFromYAML_Errors(t *testing.T) {
	tests := map[string]string{
		"malformed":         "classifications: [",
		"bad confidence":    "classifications:\n  - name: x\n    patterns:\n      - id: A\n        regex: 'a'\n        confidence: certain\n",
		"bad regex":         "classifications:\n  - name: x\n    patterns:\n      - id: A\n        regex: '('\n        confidence: low\n",
		"unknown validator": "classifications:\n  - name: x\n    patterns:\n      - id: A\n        regex: 'a'\n        validator: crc\n        confidence: low\n",
		"unnamed":           "classifications:\n  - patterns: []\n",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := NewFromYAML([]byte(data)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestValidators(t *testing.T) {
	for s, want := range map[string]bool{
		"10000000146": true,
		"10000000147": false,
		"01234567890": false,
		"1000000014":  false,
	} {
		if got := validTCKN(s); got != want {
			t.Errorf("validTCKN(%q) = %v, want %v", s, got, want)
		}
	}
	for s, want := range map[string]bool{
		"4111 1111 1111 1111": true,
		"4111-1111-1111-1112": false,
		"4111":                false,
	} {
		if got := validLuhn(s); got != want {
			t.Errorf("validLuhn(%q) = %v, want %v", s, got, want)
		}
	}
}

func TestEngine_Concurrency(t *testing.T) {
	engine := newTestEngine(t)
	input := "kimlik 10000000146"

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if len(engine.Scan(input)) != 1 {
				t.Error("concurrent scan missed the identity number")
			}
		}()
	}
	wg.Wait()
}

func BenchmarkScanPlainQuestion(b *testing.B) {
	engine, _ := New()
	input := "İstanbul'da 200 milyon TL'lik yazılım geliştirme yatırımı için hangi destekler var?"
	for b.Loop() {
		engine.Scan(input)
	}
}

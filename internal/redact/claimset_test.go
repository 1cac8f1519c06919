package redact

import "testing"

func TestClaimSet(t *testing.T) {
	t.Run("first claim wins", func(t *testing.T) {
		c := &claimSet{}

		if !c.Claim(10, 20) {
			t.Fatal("first claim on free range should succeed")
		}
		if c.Claim(15, 25) {
			t.Error("overlapping claim should fail")
		}
		if c.Claim(5, 11) {
			t.Error("claim overlapping the left edge should fail")
		}
		if c.Claim(10, 20) {
			t.Error("duplicate claim should fail")
		}
	})

	t.Run("adjacent ranges do not conflict", func(t *testing.T) {
		c := &claimSet{}

		if !c.Claim(10, 20) {
			t.Fatal("claim failed")
		}
		if !c.Claim(20, 30) {
			t.Error("range starting at previous end should succeed")
		}
		if !c.Claim(0, 10) {
			t.Error("range ending at existing start should succeed")
		}
	})

	t.Run("out of order claims stay sorted", func(t *testing.T) {
		c := &claimSet{}

		for _, iv := range [][2]int{{40, 50}, {0, 5}, {20, 30}} {
			if !c.Claim(iv[0], iv[1]) {
				t.Fatalf("claim [%d,%d) failed", iv[0], iv[1])
			}
		}
		if c.Claim(25, 45) {
			t.Error("range spanning two claimed intervals should fail")
		}
		if !c.Claim(5, 20) {
			t.Error("gap between intervals should be claimable")
		}
	})
}

package timeutil

import "testing"

func TestSetLocation(t *testing.T) {
	t.Cleanup(func() { _ = SetLocation(DefaultZone) })

	if err := SetLocation("UTC"); err != nil {
		t.Fatalf("SetLocation: %v", err)
	}
	if Now().Location().String() != "UTC" {
		t.Fatalf("expected UTC, got %s", Now().Location())
	}
	if err := SetLocation("Not/AZone"); err == nil {
		t.Fatal("expected error for unknown zone")
	}
	if Location().String() != "UTC" {
		t.Fatal("failed SetLocation must keep previous zone")
	}
}

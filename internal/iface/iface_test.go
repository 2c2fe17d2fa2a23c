package iface

import "testing"

func TestPortNumber(t *testing.T) {
	cases := []struct {
		name    string
		want    int
		wantErr bool
	}{
		{"sw1-eth1", 1, false},
		{"sw1-eth12", 12, false},
		{"leaf7-eth0", 0, false},
		{"bogus", 0, true},
	}

	for _, c := range cases {
		got, err := PortNumber(c.name)
		if c.wantErr {
			if err == nil {
				t.Errorf("PortNumber(%q): expected error", c.name)
			}
			continue
		}
		if err != nil {
			t.Errorf("PortNumber(%q): unexpected error %v", c.name, err)
			continue
		}
		if got != c.want {
			t.Errorf("PortNumber(%q) = %d, want %d", c.name, got, c.want)
		}
	}
}

func TestDiscoverNoMatches(t *testing.T) {
	// No host interface will be named like this, so a leaf must fail to
	// find a compute port and a spine must return an empty control set.
	if _, _, err := Discover("no-such-node-xyz", true); err == nil {
		t.Error("expected error when leaf has no compute interface")
	}

	compute, controls, err := Discover("no-such-node-xyz", false)
	if err != nil {
		t.Fatalf("unexpected error for spine: %v", err)
	}
	if compute != nil {
		t.Errorf("expected nil compute port for spine, got %+v", compute)
	}
	if len(controls) != 0 {
		t.Errorf("expected no control ports, got %v", controls)
	}
}

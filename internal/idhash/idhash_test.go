package idhash

import "testing"

func TestAddressHash_Normalizes(t *testing.T) {
	tests := []struct {
		name string
		a, b string
	}{
		{"case", "AbC", "abc"},
		{"trailing space", "AbC", "abc "},
		{"leading tab", "\tMintXYZ", "mintxyz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if AddressHash(tt.a) != AddressHash(tt.b) {
				t.Errorf("AddressHash(%q) != AddressHash(%q)", tt.a, tt.b)
			}
		})
	}

	if len(AddressHash("abc")) != 64 {
		t.Errorf("hash length = %d, want 64", len(AddressHash("abc")))
	}
	if AddressHash("abc") == AddressHash("abd") {
		t.Errorf("different addresses must not collide")
	}
}

func TestComputePositionID(t *testing.T) {
	id1 := ComputePositionID("user-1", "MintA", "sig1")
	id2 := ComputePositionID("user-1", "MintA", "sig1")
	if id1 != id2 {
		t.Errorf("ComputePositionID not deterministic")
	}
	if len(id1) != 64 {
		t.Errorf("length = %d, want 64", len(id1))
	}
	if id1 == ComputePositionID("user-2", "MintA", "sig1") {
		t.Errorf("user must change the id")
	}
}

func TestComputeFillID(t *testing.T) {
	a := ComputeFillID("pos", "STAGE1", "sig")
	b := ComputeFillID("pos", "STAGE2", "sig")
	if a == b {
		t.Errorf("stage must change the id")
	}
}

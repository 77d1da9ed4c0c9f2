package keydom

import "testing"

type strKey string

func (s strKey) String() string { return string(s) }

func TestReservedTokenRejected(t *testing.T) {
	if _, err := Make[strKey](1, "old_foo"); err != ErrReservedToken {
		t.Fatalf("Make with reserved token = %v, want ErrReservedToken", err)
	}
	if _, err := MakeOld[strKey](1, "old_foo"); err != ErrReservedToken {
		t.Fatalf("MakeOld with reserved token = %v, want ErrReservedToken", err)
	}
}

func TestNewFromOldInvertsToOld(t *testing.T) {
	k, err := Make[strKey](7, "foo")
	if err != nil {
		t.Fatalf("Make: %v", err)
	}
	roundTripped := k.ToOld().NewFromOld()
	if roundTripped != k {
		t.Fatalf("NewFromOld(ToOld(x)) != x: %+v vs %+v", roundTripped, k)
	}
}

func TestDigestsDiffer(t *testing.T) {
	newKey, err := Make[strKey](1, "foo")
	if err != nil {
		t.Fatalf("Make: %v", err)
	}
	oldKey, err := MakeOld[strKey](1, "foo")
	if err != nil {
		t.Fatalf("MakeOld: %v", err)
	}
	if newKey.MD5() == oldKey.MD5Old() {
		t.Fatalf("md5(make(p,x)) must differ from md5_old(make_old(p,x))")
	}
}

func TestDigestRespectsFlavor(t *testing.T) {
	k, _ := Make[strKey](3, "bar")
	if k.Digest() != k.MD5() {
		t.Fatalf("new-flavored Key.Digest() should equal MD5()")
	}
	old := k.ToOld()
	if old.Digest() != old.MD5Old() {
		t.Fatalf("old-flavored Key.Digest() should equal MD5Old()")
	}
}

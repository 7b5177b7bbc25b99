//go:build linux

package vma

import (
	"strings"
	"testing"
)

// A trimmed, representative /proc/pid/maps dump: PIE executable, libc,
// loader, heap, stack, vvar/vdso, and one anonymous mapping.
const fixtureMaps = `` +
	`55a1f0a00000-55a1f0a01000 r--p 00000000 08:02 131081 /usr/bin/ultaskd
` +
	`55a1f0a01000-55a1f0a02000 r-xp 00001000 08:02 131081 /usr/bin/ultaskd
` +
	`55a1f0c21000-55a1f0c22000 rw-p 00000000 00:00 0      [heap]
` +
	`7f2b1c000000-7f2b1c1c0000 r-xp 00000000 08:02 262401 /lib/x86_64-linux-gnu/libc-2.35.so
` +
	`7f2b1c1c0000-7f2b1c3c0000 ---p 001c0000 08:02 262401 /lib/x86_64-linux-gnu/libc-2.35.so
` +
	`7f2b1c3e0000-7f2b1c400000 r--p 001c0000 08:02 262401 /lib/x86_64-linux-gnu/libc-2.35.so
` +
	`7f2b1c420000-7f2b1c440000 r-xp 00000000 08:02 262405 /lib/x86_64-linux-gnu/ld-linux-x86-64.so.2
` +
	`7f2b1c600000-7f2b1c601000 r--p 00000000 00:00 0      [vvar]
` +
	`7f2b1c601000-7f2b1c603000 r-xp 00000000 00:00 0      [vdso]
` +
	`7f2b1c800000-7f2b1c820000 rw-p 00000000 00:00 0
` +
	`7ffe00000000-7ffe00021000 rw-p 00000000 00:00 0      [stack]
`

func TestBuildSetClassification(t *testing.T) {
	set, err := buildSet(strings.NewReader(fixtureMaps), "/usr/bin/ultaskd")
	if err != nil {
		t.Fatalf("buildSet: %v", err)
	}

	want := []Class{
		SELF, SELF, HEAP,
		LIBC, LIBC, LIBC,
		LD,
		VVAR, VDSO,
		ANON,
		STACK,
	}
	if set.Len() != len(want) {
		t.Fatalf("got %d VMAs, want %d", set.Len(), len(want))
	}
	for i, c := range want {
		if got := set.At(i).Class; got != c {
			t.Errorf("vma[%d] class = %s, want %s", i, got, c)
		}
	}
}

func TestBuildSetLeaderGrouping(t *testing.T) {
	set, err := buildSet(strings.NewReader(fixtureMaps), "/usr/bin/ultaskd")
	if err != nil {
		t.Fatalf("buildSet: %v", err)
	}

	// The three libc VMAs (indices 3,4,5) should all point at index 3.
	for _, i := range []int{3, 4, 5} {
		if li := set.At(i).LeaderIndex; li != 3 {
			t.Errorf("libc vma[%d] leader = %d, want 3", i, li)
		}
	}
	// An anonymous mapping is its own leader.
	anonIdx := 9
	if li := set.At(anonIdx).LeaderIndex; li != anonIdx {
		t.Errorf("anon vma leader = %d, want %d (self)", li, anonIdx)
	}
}

func TestParseLinePerms(t *testing.T) {
	v, err := parseLine("7f2b1c420000-7f2b1c440000 r-xp 00000000 08:02 262405 /lib/x86_64-linux-gnu/ld-linux-x86-64.so.2")
	if err != nil {
		t.Fatalf("parseLine: %v", err)
	}
	if v.Start != 0x7f2b1c420000 || v.End != 0x7f2b1c440000 {
		t.Fatalf("bad range: 0x%x-0x%x", v.Start, v.End)
	}
	if !v.Perms.Read || v.Perms.Write || !v.Perms.Exec || !v.Perms.Private {
		t.Fatalf("bad perms: %+v", v.Perms)
	}
	if v.Inode != 262405 {
		t.Fatalf("bad inode: %d", v.Inode)
	}
	if v.Path != "/lib/x86_64-linux-gnu/ld-linux-x86-64.so.2" {
		t.Fatalf("bad path: %q", v.Path)
	}
}

func TestParseLineShort(t *testing.T) {
	if _, err := parseLine("not a maps line"); err == nil {
		t.Fatal("expected error for malformed line")
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		path, exe string
		want      Class
	}{
		{"", "", ANON},
		{"[heap]", "", HEAP},
		{"[stack]", "", STACK},
		{"[vvar]", "", VVAR},
		{"[vdso]", "", VDSO},
		{"[vsyscall]", "", VSYSCALL},
		{"/usr/bin/ultaskd", "/usr/bin/ultaskd", SELF},
		{"/lib/x86_64-linux-gnu/libc.so.6", "", LIBC},
		{"/lib/x86_64-linux-gnu/libc-2.35.so", "", LIBC},
		{"/lib/ld-linux-x86-64.so.2", "", LD},
		{"/usr/lib/libelf.so.1", "", LIBELF},
		{"/usr/lib/libelf-0.187.so", "", LIBELF},
		{"/usr/lib/libssl.so.3", "", LIBUnknown},
	}
	for _, c := range cases {
		if got := classify(c.path, c.exe); got != c.want {
			t.Errorf("classify(%q, %q) = %s, want %s", c.path, c.exe, got, c.want)
		}
	}
}

func TestFindVMA(t *testing.T) {
	set, err := buildSet(strings.NewReader(fixtureMaps), "/usr/bin/ultaskd")
	if err != nil {
		t.Fatalf("buildSet: %v", err)
	}

	if v, idx, ok := set.FindVMA(0x55a1f0a01500); !ok || idx != 1 {
		t.Fatalf("FindVMA in text segment: v=%+v idx=%d ok=%v", v, idx, ok)
	}
	if _, _, ok := set.FindVMA(0x1); ok {
		t.Fatal("FindVMA should miss an unmapped low address")
	}
	// Boundary: End is exclusive.
	if _, _, ok := set.FindVMA(0x55a1f0a01000); !ok {
		t.Fatal("FindVMA should hit the second VMA's Start boundary")
	}
}

func TestFindSpan(t *testing.T) {
	set, err := buildSet(strings.NewReader(fixtureMaps), "/usr/bin/ultaskd")
	if err != nil {
		t.Fatalf("buildSet: %v", err)
	}
	// Gap between the end of the text segment (0x55a1f0a02000) and the heap
	// (0x55a1f0c21000) is large.
	gap, ok := set.FindSpan(0x1000)
	if !ok {
		t.Fatal("expected to find a span")
	}
	if gap < 0x55a1f0a02000 {
		t.Fatalf("unexpected span start 0x%x", gap)
	}
	if _, ok := set.FindSpan(1 << 46); ok {
		t.Fatal("should not find a span larger than the whole address space covered")
	}
}

func TestValidateRejectsOverlap(t *testing.T) {
	bad := "1000-3000 rw-p 00000000 00:00 0\n2000-4000 rw-p 00000000 00:00 0\n"
	if _, err := buildSet(strings.NewReader(bad), ""); err == nil {
		t.Fatal("expected overlap to be rejected")
	}
}

package fs

import (
	"errors"
	"testing"
)

func TestResolveChild(t *testing.T) {
	var ns Namespace
	tests := []struct {
		name    string
		parent  InodeID
		child   string
		want    InodeID
		wantErr error
	}{
		{name: "volume", parent: RootDir, child: "volume", want: Volume},
		{name: "dot", parent: RootDir, child: ".", want: RootDir},
		{name: "dot dot", parent: RootDir, child: "..", want: RootDir},
		{name: "unknown name", parent: RootDir, child: "nope", wantErr: ErrNoSuchEntry},
		{name: "case matters", parent: RootDir, child: "Volume", wantErr: ErrNoSuchEntry},
		{name: "volume is not a directory", parent: Volume, child: "volume", wantErr: ErrNoSuchEntry},
		{name: "unknown parent", parent: 7, child: "volume", wantErr: ErrNoSuchEntry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ns.ResolveChild(tt.parent, tt.child)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Expected error %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected inode %v, got %v", tt.want, got)
			}
		})
	}
}

func TestListChildren(t *testing.T) {
	var ns Namespace

	entries, err := ns.ListChildren(RootDir, 0)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != VolumeName || entries[0].Inode != Volume {
		t.Fatalf("Expected only the volume, got %+v", entries)
	}
	if entries[0].Kind != KindRegular {
		t.Errorf("Expected volume to be a regular file, got kind %v", entries[0].Kind)
	}

	entries, err = ns.ListChildren(RootDir, entries[0].Next)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected listing to end after the volume, got %+v", entries)
	}

	if _, err := ns.ListChildren(Volume, 0); !errors.Is(err, ErrNoSuchEntry) {
		t.Errorf("Expected ErrNoSuchEntry listing the volume, got %v", err)
	}
}

func TestKindOf(t *testing.T) {
	var ns Namespace
	if k, ok := ns.KindOf(RootDir); !ok || k != KindDirectory {
		t.Errorf("Expected root to be a directory, got %v %v", k, ok)
	}
	if k, ok := ns.KindOf(Volume); !ok || k != KindRegular {
		t.Errorf("Expected volume to be regular, got %v %v", k, ok)
	}
	for _, ino := range []InodeID{0, 3, 1 << 40} {
		if ns.Exists(ino) {
			t.Errorf("Inode %v should not exist", ino)
		}
	}
}

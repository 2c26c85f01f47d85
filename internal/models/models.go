package models

type NodeType int16

const (
	NodeTypeDir     NodeType = 0
	NodeTypeFile    NodeType = 1
	NodeTypeSymlink NodeType = 2
)

func (t NodeType) String() string {
	switch t {
	case NodeTypeDir:
		return "dir"
	case NodeTypeFile:
		return "file"
	case NodeTypeSymlink:
		return "symlink"
	}
	return "unknown"
}

// NoBlock marks an inode without a data block and an empty directory slot.
const NoBlock int64 = -1

// RootIno is the inumber of the single root directory.
const RootIno int64 = 0

type OpenMode uint8

const (
	ModeCreate OpenMode = 1 << iota
	ModeTruncate
	ModeAppend
)

func (m OpenMode) Has(flag OpenMode) bool { return m&flag != 0 }

// Inode is the in-memory inode record.
//
// Type, RefCount, OpenCount and Target are only touched under the namespace
// lock. Size and DataBlock are only touched under the inode's own lock.
type Inode struct {
	Ino       int64
	Type      NodeType
	Size      int64
	DataBlock int64
	RefCount  int
	OpenCount int
	Target    string
}

type NodeMeta struct {
	Ino      int64    `json:"ino"`
	Type     NodeType `json:"type"`
	Size     int64    `json:"size"`
	RefCount int      `json:"ref_count"`
	Target   string   `json:"target,omitempty"`
}

type Dirent struct {
	Name string   `json:"name"`
	Ino  int64    `json:"ino"`
	Type NodeType `json:"type"`
}

type OpenFile struct {
	Ino    int64
	Offset int64
}

// Snapshot is a point-in-time copy of a volume.
type Snapshot struct {
	Token    string
	RootIno  int64
	Inodes   []Inode
	Entries  []Dirent
	Contents map[int64][]byte
}

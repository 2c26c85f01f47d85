package config

import (
	"fmt"

	"github.com/S1riyS/tinyfs/pkg/binary"
)

// FSConfig holds the static sizing of a volume.
type FSConfig struct {
	MaxInodeCount     int `yaml:"max_inode_count"      env:"TFS_MAX_INODE_COUNT"      env-default:"64"`
	MaxBlockCount     int `yaml:"max_block_count"      env:"TFS_MAX_BLOCK_COUNT"      env-default:"1024"`
	MaxOpenFilesCount int `yaml:"max_open_files_count" env:"TFS_MAX_OPEN_FILES_COUNT" env-default:"16"`
	BlockSize         int `yaml:"block_size"           env:"TFS_BLOCK_SIZE"           env-default:"1024"`
}

func DefaultFS() FSConfig {
	return FSConfig{
		MaxInodeCount:     64,
		MaxBlockCount:     1024,
		MaxOpenFilesCount: 16,
		BlockSize:         1024,
	}
}

func (c FSConfig) Validate() error {
	switch {
	case c.MaxInodeCount < 1:
		return fmt.Errorf("max_inode_count must be positive, got %d", c.MaxInodeCount)
	case c.MaxBlockCount < 1:
		return fmt.Errorf("max_block_count must be positive, got %d", c.MaxBlockCount)
	case c.MaxOpenFilesCount < 1:
		return fmt.Errorf("max_open_files_count must be positive, got %d", c.MaxOpenFilesCount)
	case c.BlockSize < binary.DirentSize:
		return fmt.Errorf("block_size must hold at least one %d-byte directory entry, got %d",
			binary.DirentSize, c.BlockSize)
	}
	return nil
}

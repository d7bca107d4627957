package logsource

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// OSFileSystem 基于本地文件系统 通过 inode 识别轮转
type OSFileSystem struct{}

// Stat 返回文件大小与 inode
func (OSFileSystem) Stat(path string) (FileState, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return FileState{}, &os.PathError{Op: "stat", Path: path, Err: err}
	}
	if st.Mode&unix.S_IFMT == unix.S_IFDIR {
		return FileState{}, fmt.Errorf("%s 是目录", path)
	}
	return FileState{Size: st.Size, Inode: uint64(st.Ino)}, nil
}

// Open 以只读方式打开文件
func (OSFileSystem) Open(path string) (File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return f, nil
}

package logsource

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNode struct {
	data  []byte
	inode uint64
}

// fakeFS 模拟 inode 语义 已打开句柄在轮转后仍指向旧文件
type fakeFS struct {
	mu        sync.Mutex
	files     map[string]*fakeNode
	nextInode uint64
	opens     int
}

func newFakeFS() *fakeFS {
	return &fakeFS{files: make(map[string]*fakeNode), nextInode: 100}
}

func (fs *fakeFS) create(path string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.nextInode++
	fs.files[path] = &fakeNode{inode: fs.nextInode}
}

func (fs *fakeFS) append(path, content string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	node := fs.files[path]
	node.data = append(node.data, content...)
}

func (fs *fakeFS) truncate(path string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.files[path].data = nil
}

func (fs *fakeFS) rename(from, to string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.files[to] = fs.files[from]
	delete(fs.files, from)
}

func (fs *fakeFS) Stat(path string) (FileState, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	node, ok := fs.files[path]
	if !ok {
		return FileState{}, os.ErrNotExist
	}
	return FileState{Size: int64(len(node.data)), Inode: node.inode}, nil
}

func (fs *fakeFS) Open(path string) (File, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	node, ok := fs.files[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	fs.opens++
	return &fakeFile{fs: fs, node: node}, nil
}

type fakeFile struct {
	fs     *fakeFS
	node   *fakeNode
	pos    int64
	closed bool
}

func (f *fakeFile) Read(p []byte) (int, error) {
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()
	if f.pos >= int64(len(f.node.data)) {
		return 0, io.EOF
	}
	n := copy(p, f.node.data[f.pos:])
	f.pos += int64(n)
	return n, nil
}

func (f *fakeFile) Seek(offset int64, whence int) (int64, error) {
	f.pos = offset
	return offset, nil
}

func (f *fakeFile) Close() error {
	f.closed = true
	return nil
}

func collect(r LineSource) []string {
	var out []string
	for {
		line, ok := r.NextLine()
		if !ok {
			return out
		}
		out = append(out, line)
	}
}

func TestReaderStartsFromEnd(t *testing.T) {
	fs := newFakeFS()
	fs.create("/log/access.log")
	fs.append("/log/access.log", "old-1\nold-2\n")

	r := NewReader(fs, "/log/access.log", Options{StartFromEnd: true})
	assert.Empty(t, collect(r))

	fs.append("/log/access.log", "new-1\n")
	assert.Equal(t, []string{"new-1"}, collect(r))
}

func TestReaderReplayFromStart(t *testing.T) {
	fs := newFakeFS()
	fs.create("/log/access.log")
	fs.append("/log/access.log", "a\r\n\n  \nb\n")

	r := NewReader(fs, "/log/access.log", Options{StartFromEnd: false})
	assert.Equal(t, []string{"a", "b"}, collect(r))
}

func TestReaderBuffersPartialLine(t *testing.T) {
	fs := newFakeFS()
	fs.create("/log/access.log")
	r := NewReader(fs, "/log/access.log", Options{StartFromEnd: true})
	assert.Empty(t, collect(r))

	fs.append("/log/access.log", "first half")
	assert.Empty(t, collect(r))
	fs.append("/log/access.log", " second half\nnext")
	assert.Equal(t, []string{"first half second half"}, collect(r))
	fs.append("/log/access.log", "\n")
	assert.Equal(t, []string{"next"}, collect(r))
}

func TestReaderFlushTrailingLine(t *testing.T) {
	fs := newFakeFS()
	fs.create("/log/access.log")
	fs.append("/log/access.log", "a\nlast\r")

	r := NewReader(fs, "/log/access.log", Options{StartFromEnd: false})
	assert.Equal(t, []string{"a"}, collect(r))

	line, ok := r.Flush()
	require.True(t, ok)
	assert.Equal(t, "last", line)

	_, ok = r.Flush()
	assert.False(t, ok)
}

func TestReaderTruncation(t *testing.T) {
	fs := newFakeFS()
	fs.create("/log/access.log")
	r := NewReader(fs, "/log/access.log", Options{StartFromEnd: true})
	collect(r)

	fs.append("/log/access.log", "before-1\nbefore-2\n")
	assert.Equal(t, []string{"before-1", "before-2"}, collect(r))

	fs.truncate("/log/access.log")
	fs.append("/log/access.log", "after\n")
	assert.Equal(t, []string{"after"}, collect(r))

	pos, err := r.Position()
	require.NoError(t, err)
	assert.Equal(t, 1, pos.Reopens)
	assert.Equal(t, int64(len("after\n")), pos.Offset)
}

func TestReaderRotation(t *testing.T) {
	fs := newFakeFS()
	fs.create("/log/access.log")
	r := NewReader(fs, "/log/access.log", Options{StartFromEnd: true})
	collect(r)

	fs.append("/log/access.log", "line-1\n")
	assert.Equal(t, []string{"line-1"}, collect(r))

	// 轮转前写入但尚未读取的内容也不能丢
	fs.append("/log/access.log", "line-2\n")
	fs.rename("/log/access.log", "/log/access.log.1")
	fs.create("/log/access.log")
	fs.append("/log/access.log", "line-3\n")

	assert.Equal(t, []string{"line-2", "line-3"}, collect(r))
	assert.Equal(t, 2, fs.opens)
}

func TestReaderMissingFileBackoff(t *testing.T) {
	fs := newFakeFS()
	now := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	r := NewReader(fs, "/log/access.log", Options{
		StartFromEnd: false,
		RetryMin:     500 * time.Millisecond,
		RetryMax:     2 * time.Second,
		Clock:        clock,
	})

	assert.Empty(t, collect(r))
	require.Error(t, r.Err())
	assert.ErrorIs(t, r.Err(), os.ErrNotExist)
	assert.Equal(t, now.Add(500*time.Millisecond), r.RetryAt())
	_, err := r.Position()
	assert.ErrorIs(t, err, ErrNotStarted)

	// 退避期内不再访问文件系统
	fs.create("/log/access.log")
	fs.append("/log/access.log", "hello\n")
	assert.Empty(t, collect(r))

	now = now.Add(500 * time.Millisecond)
	assert.Equal(t, []string{"hello"}, collect(r))
	assert.NoError(t, r.Err())
	assert.True(t, r.RetryAt().IsZero())
}

func TestReaderFileAppearsAfterStart(t *testing.T) {
	fs := newFakeFS()
	now := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	r := NewReader(fs, "/log/access.log", Options{
		StartFromEnd: true,
		RetryMin:     500 * time.Millisecond,
		Clock:        func() time.Time { return now },
	})

	assert.Empty(t, collect(r))
	require.Error(t, r.Err())

	// 启动时不存在的文件没有需要跳过的历史
	fs.create("/log/access.log")
	fs.append("/log/access.log", "a\nb\n")
	now = now.Add(time.Second)
	fs.append("/log/access.log", "c\n")
	assert.Equal(t, []string{"a", "b", "c"}, collect(r))
	assert.NoError(t, r.Err())
}

func TestReaderOversizedLineSkipped(t *testing.T) {
	fs := newFakeFS()
	fs.create("/log/access.log")
	r := NewReader(fs, "/log/access.log", Options{StartFromEnd: false})

	huge := strings.Repeat("x", maxLineBytes/2)
	fs.append("/log/access.log", "before\n"+huge)
	assert.Equal(t, []string{"before"}, collect(r))
	fs.append("/log/access.log", huge+huge)
	assert.Empty(t, collect(r))
	fs.append("/log/access.log", huge+"\nafter\n")
	assert.Equal(t, []string{"after"}, collect(r))

	fs.append("/log/access.log", strings.Repeat("y", maxLineBytes+1)+"\nlast\n")
	assert.Equal(t, []string{"last"}, collect(r))

	pos, err := r.Position()
	require.NoError(t, err)
	assert.Equal(t, 2, pos.Oversized)
}

func TestReaderBoundedBacklog(t *testing.T) {
	fs := newFakeFS()
	fs.create("/log/access.log")
	total := 20 * maxPendingLines
	var b strings.Builder
	for i := 0; i < total; i++ {
		fmt.Fprintf(&b, "line-%d\n", i)
	}
	fs.append("/log/access.log", b.String())

	r := NewReader(fs, "/log/access.log", Options{StartFromEnd: false})
	first, ok := r.NextLine()
	require.True(t, ok)
	assert.Equal(t, "line-0", first)
	// 一次只缓存一批 其余内容留在文件中
	assert.Less(t, len(r.pending), total-1)

	rest := collect(r)
	require.Len(t, rest, total-1)
	assert.Equal(t, fmt.Sprintf("line-%d", total-1), rest[len(rest)-1])
}

func TestReaderBackoffCapped(t *testing.T) {
	fs := newFakeFS()
	now := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	r := NewReader(fs, "/missing", Options{
		RetryMin: 500 * time.Millisecond,
		RetryMax: 2 * time.Second,
		Clock:    func() time.Time { return now },
	})

	want := []time.Duration{500 * time.Millisecond, time.Second, 2 * time.Second, 2 * time.Second}
	for _, d := range want {
		collect(r)
		assert.Equal(t, now.Add(d), r.RetryAt())
		now = now.Add(d)
	}
}

func TestReaderClose(t *testing.T) {
	fs := newFakeFS()
	fs.create("/log/access.log")
	r := NewReader(fs, "/log/access.log", Options{StartFromEnd: true})
	collect(r)
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
}

func TestFollowerOnDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "access.log")
	require.NoError(t, os.WriteFile(path, []byte("history\n"), 0o644))

	reader := NewReader(OSFileSystem{}, path, Options{StartFromEnd: true})
	defer reader.Close()

	lines := make(chan string, 16)
	follower := NewFollower(reader, path, 20*time.Millisecond, func(line string) {
		lines <- line
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- follower.Run(ctx) }()

	// 等待读取器定位到末尾
	require.Eventually(t, func() bool {
		_, err := reader.Position()
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("fresh-1\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	select {
	case line := <-lines:
		assert.Equal(t, "fresh-1", line)
	case <-time.After(3 * time.Second):
		t.Fatal("未收到新增日志行")
	}

	// 轮转到新文件
	require.NoError(t, os.Rename(path, path+".1"))
	require.NoError(t, os.WriteFile(path, []byte("rotated-1\n"), 0o644))

	select {
	case line := <-lines:
		assert.Equal(t, "rotated-1", line)
	case <-time.After(3 * time.Second):
		t.Fatal("轮转后未收到日志行")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("follower 未退出")
	}
}

// Package jsonl 将信号与影子成交以 JSONL 追加写入文件。
// Write 只投递到缓冲通道，编码与磁盘 I/O 由后台 goroutine 串行完成，
// 分析热路径不会被文件系统阻塞。
package jsonl

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
)

type command struct {
	// record 待写入的一条记录；nil 表示控制命令
	record any
	// ack 非空时后台在处理完成后回传结果（flush/close）
	ack chan error
	// shutdown 为真时后台落盘后退出
	shutdown bool
}

// Writer 异步 JSONL 写入器
type Writer struct {
	path string
	cmds chan command

	closeOnce sync.Once
	closeErr  error
	closed    int32
	sendMu    sync.Mutex
	done      sync.WaitGroup

	// dropped 编码失败被丢弃的记录数
	dropped int64
}

// NewWriter 创建写入器并启动后台落盘循环
// 参数 path: 输出文件路径，目录不存在时自动创建
// 参数 bufferSize: 投递通道容量
func NewWriter(path string, bufferSize int) (*Writer, error) {
	if bufferSize <= 0 {
		bufferSize = 1000
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("创建输出目录失败: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("打开输出文件失败: %w", err)
	}

	w := &Writer{
		path: path,
		cmds: make(chan command, bufferSize),
	}
	w.done.Add(1)
	go w.drain(f)
	return w, nil
}

// Write 投递一条记录；通道满时阻塞
func (w *Writer) Write(v any) error {
	if w == nil {
		return fmt.Errorf("writer 为空")
	}
	w.sendMu.Lock()
	defer w.sendMu.Unlock()
	if atomic.LoadInt32(&w.closed) == 1 {
		return fmt.Errorf("writer 已关闭: %s", w.path)
	}
	w.cmds <- command{record: v}
	return nil
}

// Flush 等待此前投递的记录全部落盘
func (w *Writer) Flush() error {
	if w == nil {
		return nil
	}
	w.sendMu.Lock()
	defer w.sendMu.Unlock()
	if atomic.LoadInt32(&w.closed) == 1 {
		return nil
	}
	ack := make(chan error, 1)
	w.cmds <- command{ack: ack}
	return <-ack
}

// Close 落盘并关闭；幂等
func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	w.closeOnce.Do(func() {
		w.sendMu.Lock()
		atomic.StoreInt32(&w.closed, 1)
		ack := make(chan error, 1)
		w.cmds <- command{ack: ack, shutdown: true}
		w.closeErr = <-ack
		close(w.cmds)
		w.sendMu.Unlock()
	})
	w.done.Wait()
	return w.closeErr
}

// Dropped 编码失败被丢弃的记录数
func (w *Writer) Dropped() int64 {
	return atomic.LoadInt64(&w.dropped)
}

func (w *Writer) drain(f *os.File) {
	defer w.done.Done()
	defer f.Close()

	bw := bufio.NewWriterSize(f, 1<<20)
	for cmd := range w.cmds {
		if cmd.record != nil {
			line, err := json.Marshal(cmd.record)
			if err != nil {
				atomic.AddInt64(&w.dropped, 1)
				continue
			}
			if _, err := bw.Write(line); err == nil {
				_ = bw.WriteByte('\n')
			}
			continue
		}

		err := bw.Flush()
		if cmd.ack != nil {
			cmd.ack <- err
		}
		if cmd.shutdown {
			return
		}
	}
}

package console

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"derivagg/internal/application/port"
)

// Sink 把监控行写到终端。live 行用 \r 原地刷新
type Sink struct {
	mu  sync.Mutex
	out io.Writer
}

func NewSink() port.Sink { return NewSinkTo(os.Stdout) }

func NewSinkTo(w io.Writer) *Sink { return &Sink{out: w} }

func (s *Sink) WriteLive(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// \033[K 清掉上一行残留
	_, err := fmt.Fprintf(s.out, "\r%s\033[K", line)
	return err
}

// 快照行单独成行，下一次变化时再重画 live
func (s *Sink) WriteSnapshot(ts time.Time, line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintf(s.out, "\n%s %s\n", ts.Format("2006-01-02 15:04:05"), line)
	return err
}

func (s *Sink) NewLine() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprint(s.out, "\n")
	return err
}

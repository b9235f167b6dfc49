package notify_libnotify

import (
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const appName = "pipeline-stats"

// Notifier shows desktop notifications through notify-send. A soft
// notifier swallows delivery errors, e.g. on headless hosts.
type Notifier struct {
	soft bool
	opt  Options
}

type Options struct {
	Urgency string
	Expire  time.Duration
}

func New(opt Options) *Notifier     { return &Notifier{soft: false, opt: opt} }
func NewSoft(opt Options) *Notifier { return &Notifier{soft: true, opt: opt} }

func (n *Notifier) Notify(ctx context.Context, title, body, url string) error {
	cmd := exec.CommandContext(ctx, "notify-send", buildArgs(title, body, url, n.opt)...)
	if err := cmd.Run(); err != nil {
		if n.soft {
			return nil
		}
		return err
	}
	return nil
}

func buildArgs(title, body, url string, opt Options) []string {
	if strings.TrimSpace(url) != "" {
		if body == "" {
			body = url
		} else {
			body = body + "\n" + url
		}
	}

	args := []string{"--app-name=" + appName}
	if opt.Urgency != "" {
		args = append(args, "--urgency="+opt.Urgency)
	}
	if opt.Expire > 0 {
		ms := strconv.Itoa(int(opt.Expire / time.Millisecond))
		args = append(args, "--expire-time="+ms)
	}
	return append(args, title, body)
}

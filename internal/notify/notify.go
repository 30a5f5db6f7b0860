// Package notify pushes batch completion notices to the operator's
// configured notification services.
package notify

import (
	"fmt"
	"io"
	"log"
	"strings"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	"github.com/nicholas-fedor/shoutrrr/pkg/router"
	"github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/cascadiawater/reachsync/internal/batch"
)

// Notifier sends run summaries to zero or more notification URLs. A notifier
// with no URLs is valid and silently does nothing.
type Notifier struct {
	nodeName string
	urls     []string
	sender   *router.ServiceRouter
}

// New creates a notifier for the given service URLs. URLs are validated up
// front so a typo surfaces at startup, not after a multi-hour run.
func New(nodeName string, urls []string) (*Notifier, error) {
	n := &Notifier{nodeName: nodeName, urls: append([]string{}, urls...)}
	if len(urls) == 0 {
		return n, nil
	}

	sender, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		return nil, fmt.Errorf("invalid notification URL: %w", err)
	}
	sender.SetLogger(log.New(io.Discard, "", 0))
	n.sender = sender
	return n, nil
}

// Enabled reports whether any notification URLs are configured.
func (n *Notifier) Enabled() bool {
	return n.sender != nil
}

// SendReport pushes a finished run's summary. Failed deliveries are collected
// into one error; the run itself has already succeeded or failed on its own.
func (n *Notifier) SendReport(report *batch.Report) error {
	if !n.Enabled() {
		return nil
	}

	title := fmt.Sprintf("%s: batch run finished", n.nodeName)
	if report.Cancelled {
		title = fmt.Sprintf("%s: batch run cancelled", n.nodeName)
	}

	params := types.Params{}
	params.SetTitle(title)

	errs := n.sender.Send(report.Summary(), &params)
	var failed []string
	for _, err := range errs {
		if err != nil {
			failed = append(failed, err.Error())
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("notification delivery failed: %s", strings.Join(failed, "; "))
	}
	return nil
}

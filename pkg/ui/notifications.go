package ui

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"gmapsimages/pkg/models"
)

// NotificationSender interface for platform-specific notification implementations
type NotificationSender interface {
	Send(title, message string) error
}

// LinuxNotificationSender sends notifications on Linux using notify-send
type LinuxNotificationSender struct{}

func (l *LinuxNotificationSender) Send(title, message string) error {
	return exec.Command("notify-send", "--app-name=gmapsimages", title, message).Run()
}

// MacOSNotificationSender sends notifications on macOS using osascript
type MacOSNotificationSender struct{}

func (m *MacOSNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`display notification %s with title %s`, appleScriptString(message), appleScriptString(title))
	return exec.Command("osascript", "-e", script).Run()
}

func appleScriptString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

// WindowsNotificationSender sends notifications on Windows using PowerShell
type WindowsNotificationSender struct{}

func (w *WindowsNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`
		[Windows.UI.Notifications.ToastNotificationManager, Windows.UI.Notifications, ContentType = WindowsRuntime] | Out-Null
		[Windows.Data.Xml.Dom.XmlDocument, Windows.Data.Xml.Dom.XmlDocument, ContentType = WindowsRuntime] | Out-Null
		$template = [Windows.UI.Notifications.ToastNotificationManager]::GetTemplateContent([Windows.UI.Notifications.ToastTemplateType]::ToastText02)
		$text = $template.GetElementsByTagName("text")
		$text.Item(0).AppendChild($template.CreateTextNode('%s')) | Out-Null
		$text.Item(1).AppendChild($template.CreateTextNode('%s')) | Out-Null
		$toast = [Windows.UI.Notifications.ToastNotification]::new($template)
		[Windows.UI.Notifications.ToastNotificationManager]::CreateToastNotifier("gmapsimages").Show($toast)
	`, powerShellString(title), powerShellString(message))

	return exec.Command("powershell", "-NoProfile", "-NonInteractive", "-Command", script).Run()
}

func powerShellString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// Notifier sends a desktop notification when a run finishes
type Notifier struct {
	sender NotificationSender
}

// NewNotifier creates a Notifier for the current platform
func NewNotifier() *Notifier {
	var sender NotificationSender

	switch runtime.GOOS {
	case "linux":
		sender = &LinuxNotificationSender{}
	case "darwin":
		sender = &MacOSNotificationSender{}
	case "windows":
		sender = &WindowsNotificationSender{}
	}

	return &Notifier{sender: sender}
}

// NewNotifierWithSender creates a Notifier that delivers through sender
func NewNotifierWithSender(sender NotificationSender) *Notifier {
	return &Notifier{sender: sender}
}

// NotifyOutcome reports the end of a run. Delivery failures are ignored.
func (n *Notifier) NotifyOutcome(location string, result models.RunResult, err error) {
	if n.sender == nil {
		return
	}

	title := "gmapsimages: " + location
	switch ClassifyOutcome(result, err) {
	case OutcomeSuccess, OutcomeURLsOnly, OutcomeNoImages:
		title += " done"
	default:
		title += " failed"
	}
	_ = n.sender.Send(title, OutcomeLine(location, result, err))
}

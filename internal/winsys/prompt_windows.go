//go:build windows

package winsys

import "github.com/gonutz/w32"

// MessageBoxPrompter asks with a YES/NO message box. It is used when the
// tool runs without a console, e.g. started from Explorer.
type MessageBoxPrompter struct {
	Caption string
	Text    string
}

func (p MessageBoxPrompter) ConfirmReboot() bool {
	caption := p.Caption
	if caption == "" {
		caption = "themetool"
	}
	text := p.Text
	if text == "" {
		text = "Installation finished. A reboot is required for the changes to take effect.\n\nReboot now?"
	}
	return w32.MessageBox(0, text, caption, w32.MB_YESNO|w32.MB_ICONQUESTION) == w32.IDYES
}

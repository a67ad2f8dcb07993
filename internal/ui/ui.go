package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/bz888/roichat/internal/chat"
	"github.com/bz888/roichat/internal/logger"
)

const (
	noDownloadLabel = "No report"
	updateQueueSize = 100
)

// ModelLister lists the models the service can talk to.
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

// UI is the terminal front end of a chat session.
type UI struct {
	app            *tview.Application
	conversation   *tview.TextView
	input          *tview.TextArea
	sendButton     *tview.Button
	downloadButton *tview.Button
	debugConsole   *tview.TextView
	mainFlex       *tview.Flex
	debugShown     bool

	session *chat.Session
	models  ModelLister
	ctx     context.Context
	log     *logger.Logger

	// queue runs widget updates on the UI goroutine.
	queue   func(func())
	updates chan func()
	done    chan struct{}
	screen  tcell.Screen
	wg      sync.WaitGroup
}

// New builds the widgets. The debug console is shown from the start in dev mode.
func New(dev bool) *UI {
	u := &UI{
		app:        tview.NewApplication(),
		debugShown: dev,
		ctx:        context.Background(),
		updates:    make(chan func(), updateQueueSize),
		done:       make(chan struct{}),
	}
	u.app.EnablePaste(true)
	u.app.EnableMouse(true)
	u.queue = u.enqueue

	u.debugConsole = initDebugConsole()
	u.conversation = initChatViewer()
	u.input = initChatInput()
	u.sendButton = tview.NewButton("Send").SetSelectedFunc(u.submit)
	u.downloadButton = tview.NewButton(noDownloadLabel).SetSelectedFunc(u.download)

	buttons := tview.NewFlex().
		AddItem(u.sendButton, 0, 1, false).
		AddItem(nil, 1, 0, false).
		AddItem(u.downloadButton, 0, 2, false)
	subFlex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(u.conversation, 0, 1, false).
		AddItem(u.input, 6, 2, true).
		AddItem(buttons, 1, 0, false)
	u.mainFlex = tview.NewFlex().
		AddItem(subFlex, 0, 2, true)
	if dev {
		u.mainFlex.AddItem(u.debugConsole, 0, 1, false)
	}

	u.setInputCapture()
	return u
}

func initChatViewer() *tview.TextView {
	textView := tview.NewTextView().
		SetDynamicColors(true).
		SetRegions(true).
		SetWordWrap(true)

	textView.SetTitle("Conversation").SetBorder(true)
	textView.SetScrollable(true)
	textView.ScrollToEnd()
	return textView
}

func initChatInput() *tview.TextArea {
	textArea := tview.NewTextArea()
	textArea.SetTitle("Question (Enter to send, Ctrl+D to download)").SetBorder(true)
	return textArea
}

func initDebugConsole() *tview.TextView {
	console := tview.NewTextView().
		SetDynamicColors(true).
		SetRegions(true).
		SetWordWrap(true)

	console.SetTitle("Debugger").SetBorder(true)
	console.ScrollToEnd()
	return console
}

// DebugConsole is where the logger mirrors records in dev mode.
func (u *UI) DebugConsole() *tview.TextView {
	return u.debugConsole
}

// Attach binds the session whose messages this UI renders and sends.
func (u *UI) Attach(session *chat.Session, models ModelLister) {
	u.session = session
	u.models = models
	u.log = logger.NewLogger("views")
}

// Run blocks until the user quits or ctx is cancelled. Pending sends are
// cancelled through ctx as well. Updates queued after Run returns are dropped.
func (u *UI) Run(ctx context.Context) error {
	if u.session == nil {
		return errors.New("ui has no session attached")
	}
	u.ctx = ctx
	defer close(u.done)

	go func() {
		select {
		case <-ctx.Done():
			u.app.Stop()
		case <-u.done:
		}
	}()
	go u.pump()

	if u.screen != nil {
		u.app.SetScreen(u.screen)
	}
	u.writeBot("Hi! I can estimate the ROI of supply chain visibility for your company. " +
		"Tell me about your business, or type /help.")
	return u.app.SetRoot(u.mainFlex, true).SetFocus(u.input).Run()
}

// enqueue hands f to the event loop without waiting for it to run, so
// goroutines finishing after the app stopped never block.
func (u *UI) enqueue(f func()) {
	select {
	case <-u.done:
		return
	default:
	}
	select {
	case u.updates <- f:
	case <-u.done:
	}
}

// pump forwards queued updates to the event loop in order. tview blocks the
// caller of QueueUpdateDraw until the loop runs it, so only this goroutine
// may be left waiting when the app stops.
func (u *UI) pump() {
	for {
		select {
		case f := <-u.updates:
			u.app.QueueUpdateDraw(f)
		case <-u.done:
			return
		}
	}
}

func (u *UI) Stop() {
	u.app.Stop()
}

// Wait blocks until every send and download started by the UI has finished.
func (u *UI) Wait() {
	u.wg.Wait()
}

func (u *UI) setInputCapture() {
	u.conversation.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEnter {
			u.app.SetFocus(u.input)
		}
		return event
	})

	u.input.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyESC:
			if u.conversation.GetText(false) != "" {
				u.app.SetFocus(u.conversation)
			}
			return event
		case tcell.KeyCtrlD:
			u.download()
			return nil
		case tcell.KeyTab:
			u.app.SetFocus(u.sendButton)
			return nil
		case tcell.KeyEnter:
			// Alt+Enter keeps a newline
			if event.Modifiers()&tcell.ModAlt != 0 {
				return event
			}
			u.submit()
			return nil
		}
		return event
	})

	exit := func(key tcell.Key) { u.app.SetFocus(u.input) }
	u.sendButton.SetExitFunc(exit)
	u.downloadButton.SetExitFunc(exit)
}

// submit is shared by the Enter key and the Send button.
func (u *UI) submit() {
	content := u.input.GetText()
	if strings.TrimSpace(content) == "" {
		return
	}
	u.input.SetText("", true)

	if u.command(strings.TrimSpace(content)) {
		return
	}

	u.input.SetDisabled(true)
	u.wg.Add(1)
	go func() {
		defer u.wg.Done()
		err := u.session.Send(u.ctx, content)
		u.queue(func() {
			if err != nil {
				u.writeError(err)
			}
			u.input.SetDisabled(false)
			u.app.SetFocus(u.input)
		})
	}()
}

func (u *UI) command(content string) bool {
	switch content {
	case "/help":
		u.listHelp()
	case "/bye", "/quit", "/exit":
		fmt.Fprintf(u.conversation, "Bye bye\n")
		u.app.Stop()
	case "/debug":
		u.toggleDebugConsole()
	case "/download":
		u.download()
	case "/transcript":
		fmt.Fprintf(u.conversation, "[grey]%d messages in this session[-]\n\n", len(u.session.Transcript()))
	case "/models":
		u.listModels()
	default:
		return false
	}
	return true
}

func (u *UI) download() {
	if !u.session.Armed() {
		fmt.Fprintf(u.conversation, "[yellow]There is no report to download yet.[-]\n\n")
		return
	}
	u.wg.Add(1)
	go func() {
		defer u.wg.Done()
		path, err := u.session.Download(u.ctx)
		u.queue(func() {
			if errors.Is(err, chat.ErrNotArmed) {
				fmt.Fprintf(u.conversation, "[yellow]There is no report to download yet.[-]\n\n")
				return
			}
			if err != nil {
				u.writeError(err)
				return
			}
			fmt.Fprintf(u.conversation, "[green]Saved report to %s[-]\n\n", tview.Escape(path))
		})
	}()
}

func (u *UI) listModels() {
	if u.models == nil {
		return
	}
	u.wg.Add(1)
	go func() {
		defer u.wg.Done()
		models, err := u.models.ListModels(u.ctx)
		u.queue(func() {
			if err != nil {
				u.writeError(err)
				return
			}
			if len(models) == 0 {
				fmt.Fprintf(u.conversation, "[grey]The service reports no models.[-]\n\n")
				return
			}
			fmt.Fprintf(u.conversation, "[grey]Models: %s[-]\n\n", tview.Escape(strings.Join(models, ", ")))
		})
	}()
}

// RenderMessage appends a message to the conversation view.
func (u *UI) RenderMessage(msg chat.Message) {
	u.queue(func() {
		switch msg.Role {
		case chat.RoleUser:
			fmt.Fprintln(u.conversation, "[red::]You:[-]")
		default:
			fmt.Fprintln(u.conversation, "[green::]Bot:[-]")
		}
		fmt.Fprintf(u.conversation, "%s\n\n", tview.Escape(msg.Content))
		u.conversation.ScrollToEnd()
	})
}

// RenderDownload reflects the pending report on the download control.
func (u *UI) RenderDownload(filename string, armed bool) {
	u.queue(func() {
		if armed {
			u.downloadButton.SetLabel("Download " + filename)
			return
		}
		u.downloadButton.SetLabel(noDownloadLabel)
	})
}

func (u *UI) writeBot(text string) {
	fmt.Fprintln(u.conversation, "[green::]Bot:[-]")
	fmt.Fprintf(u.conversation, "%s\n\n", tview.Escape(text))
}

func (u *UI) writeError(err error) {
	if u.log != nil {
		u.log.Error(err)
	}
	fmt.Fprintf(u.conversation, "[red]Error: %s[-]\n\n", tview.Escape(err.Error()))
}

func (u *UI) toggleDebugConsole() {
	if u.debugShown {
		u.mainFlex.RemoveItem(u.debugConsole)
		fmt.Fprintf(u.conversation, "Debug console disabled\n\n")
	} else {
		u.mainFlex.AddItem(u.debugConsole, 0, 1, false)
		fmt.Fprintf(u.conversation, "Debug console enabled\n\n")
	}
	u.debugShown = !u.debugShown
}

func (u *UI) listHelp() {
	u.writeBot("Here are some commands you can use:\n" +
		"- /help: Display this help message\n" +
		"- /bye: Exit the application\n" +
		"- /debug: Toggle the debug console\n" +
		"- /download: Save the latest report (also Ctrl+D or the Download button)\n" +
		"- /transcript: Show how many messages were exchanged\n" +
		"- /models: List the models the service can use")
}

var _ chat.Renderer = (*UI)(nil)

package dom

import (
	"strings"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
)

func NavigateAction(url string) chromedp.Action {
	return chromedp.Navigate(url)
}

func ClickAction(selector string) chromedp.Action {
	return chromedp.Tasks{
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery),
	}
}

// FillAction replaces the current value of an input.
func FillAction(selector, value string) chromedp.Action {
	return chromedp.Tasks{
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	}
}

func SelectAction(selector, value string) chromedp.Action {
	return chromedp.Tasks{
		chromedp.WaitReady(selector, chromedp.ByQuery),
		chromedp.SetValue(selector, value, chromedp.ByQuery),
	}
}

// CheckedAction reads the live "checked" property, not the attribute.
func CheckedAction(selector string, checked *bool) chromedp.Action {
	return chromedp.Tasks{
		chromedp.WaitReady(selector, chromedp.ByQuery),
		chromedp.JavascriptAttribute(selector, "checked", checked, chromedp.ByQuery),
	}
}

func TextAction(selector string, text *string) chromedp.Action {
	return chromedp.Tasks{
		chromedp.WaitReady(selector, chromedp.ByQuery),
		chromedp.TextContent(selector, text, chromedp.ByQuery),
	}
}

func WaitReadyAction(selector string) chromedp.Action {
	return chromedp.WaitReady(selector, chromedp.ByQuery)
}

func GetFullHTMLAction(res *string) chromedp.Action {
	return chromedp.Evaluate(`document.documentElement.outerHTML`, res)
}

// ScreenshotAction captures the whole page or only the viewport, as PNG.
func ScreenshotAction(fullPage bool, res *[]byte) chromedp.Action {
	if fullPage {
		return chromedp.FullScreenshot(res, 100)
	}
	return chromedp.CaptureScreenshot(res)
}

func RunScriptAction(script string) chromedp.Action {
	return chromedp.Evaluate(script, nil)
}

var namedKeys = map[string]string{
	"enter":      kb.Enter,
	"tab":        kb.Tab,
	"escape":     kb.Escape,
	"backspace":  kb.Backspace,
	"delete":     kb.Delete,
	"arrowup":    kb.ArrowUp,
	"arrowdown":  kb.ArrowDown,
	"arrowleft":  kb.ArrowLeft,
	"arrowright": kb.ArrowRight,
	"home":       kb.Home,
	"end":        kb.End,
	"pageup":     kb.PageUp,
	"pagedown":   kb.PageDown,
}

// KeyPressAction presses a named key ("Enter", "Tab", ...). Unknown names
// are sent as literal text.
func KeyPressAction(key string) chromedp.Action {
	if k, ok := namedKeys[strings.ToLower(key)]; ok {
		return chromedp.KeyEvent(k)
	}
	return chromedp.KeyEvent(key)
}

func TypeTextAction(text string) chromedp.Action {
	return chromedp.KeyEvent(text)
}

package dom

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/cdp"
	cdpdom "github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
)

// center scrolls the first node matching selector into view and returns the
// middle of its content box in viewport coordinates.
func center(ctx context.Context, selector string) (float64, float64, error) {
	var nodes []*cdp.Node
	if err := chromedp.Nodes(selector, &nodes, chromedp.ByQuery, chromedp.NodeVisible).Do(ctx); err != nil {
		return 0, 0, err
	}
	if len(nodes) == 0 {
		return 0, 0, fmt.Errorf("no node matches %s", selector)
	}
	node := nodes[0]
	if err := cdpdom.ScrollIntoViewIfNeeded().WithNodeID(node.NodeID).Do(ctx); err != nil {
		return 0, 0, err
	}
	box, err := cdpdom.GetBoxModel().WithNodeID(node.NodeID).Do(ctx)
	if err != nil {
		return 0, 0, err
	}
	quad := box.Content
	if len(quad) != 8 {
		return 0, 0, fmt.Errorf("unexpected box model for %s", selector)
	}
	x := (quad[0] + quad[2] + quad[4] + quad[6]) / 4
	y := (quad[1] + quad[3] + quad[5] + quad[7]) / 4
	return x, y, nil
}

func HoverAction(selector string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		x, y, err := center(ctx, selector)
		if err != nil {
			return err
		}
		return input.DispatchMouseEvent(input.MouseMoved, x, y).Do(ctx)
	})
}

// DragAction presses the left button on source, moves to target in a few
// steps and releases there.
func DragAction(source, target string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		sx, sy, err := center(ctx, source)
		if err != nil {
			return err
		}
		if err := input.DispatchMouseEvent(input.MouseMoved, sx, sy).Do(ctx); err != nil {
			return err
		}
		if err := input.DispatchMouseEvent(input.MousePressed, sx, sy).
			WithButton(input.Left).WithClickCount(1).Do(ctx); err != nil {
			return err
		}
		tx, ty, err := center(ctx, target)
		if err != nil {
			return err
		}
		const steps = 5
		for i := 1; i <= steps; i++ {
			x := sx + (tx-sx)*float64(i)/steps
			y := sy + (ty-sy)*float64(i)/steps
			if err := input.DispatchMouseEvent(input.MouseMoved, x, y).
				WithButton(input.Left).WithButtons(1).Do(ctx); err != nil {
				return err
			}
		}
		return input.DispatchMouseEvent(input.MouseReleased, tx, ty).
			WithButton(input.Left).WithClickCount(1).Do(ctx)
	})
}

func UploadAction(selector string, paths []string) chromedp.Action {
	return chromedp.Tasks{
		chromedp.WaitReady(selector, chromedp.ByQuery),
		chromedp.SetUploadFiles(selector, paths, chromedp.ByQuery),
	}
}

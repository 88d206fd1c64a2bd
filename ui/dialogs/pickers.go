// Package dialogs provides application dialogs.
package dialogs

import (
	"context"
	"log/slog"

	"rookery-counter/internal/catalog"
	"rookery-counter/internal/session"
	"rookery-counter/internal/store"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
)

// Prompter renders the blocking prompts the marker workflow needs:
// category and local-site pickers, confirmations, and the effort editor.
// Its methods must be called off the UI goroutine; each shows a dialog via
// fyne.Do and blocks until the user answers.
type Prompter struct {
	window     fyne.Window
	efforts    *store.EffortStore
	siteNames  []string
	categories []catalog.Category
}

// NewPrompter creates a prompter bound to the main window.
func NewPrompter(window fyne.Window, efforts *store.EffortStore, siteNames []string, categories []catalog.Category) *Prompter {
	return &Prompter{
		window:     window,
		efforts:    efforts,
		siteNames:  siteNames,
		categories: categories,
	}
}

// PickCategory shows a category chooser and blocks for the answer.
func (p *Prompter) PickCategory(cats []catalog.Category) (catalog.Category, bool) {
	type pick struct {
		cat catalog.Category
		ok  bool
	}
	done := make(chan pick, 1)

	fyne.Do(func() {
		names := make([]string, len(cats))
		for i, c := range cats {
			names[i] = c.Name
		}
		sel := widget.NewSelect(names, nil)
		if len(names) > 0 {
			sel.SetSelectedIndex(0)
		}

		dlg := dialog.NewCustomConfirm("Choose Category", "OK", "Cancel",
			widget.NewForm(widget.NewFormItem("Category", sel)),
			func(ok bool) {
				if !ok || sel.SelectedIndex() < 0 {
					done <- pick{}
					return
				}
				done <- pick{cat: cats[sel.SelectedIndex()], ok: true}
			}, p.window)
		dlg.Show()
	})

	r := <-done
	return r.cat, r.ok
}

// PickLocalSite shows a local-site chooser and blocks for the answer.
func (p *Prompter) PickLocalSite(sites []string) (string, bool) {
	type pick struct {
		site string
		ok   bool
	}
	done := make(chan pick, 1)

	fyne.Do(func() {
		sel := widget.NewSelect(sites, nil)
		if len(sites) > 0 {
			sel.SetSelectedIndex(0)
		}

		dlg := dialog.NewCustomConfirm("Choose Local Site", "OK", "Cancel",
			widget.NewForm(widget.NewFormItem("Local site", sel)),
			func(ok bool) {
				if !ok || sel.Selected == "" {
					done <- pick{}
					return
				}
				done <- pick{site: sel.Selected, ok: true}
			}, p.window)
		dlg.Show()
	})

	r := <-done
	return r.site, r.ok
}

// Confirm shows a yes/no dialog and blocks for the answer.
func (p *Prompter) Confirm(title, message string) bool {
	done := make(chan bool, 1)
	fyne.Do(func() {
		dialog.NewConfirm(title, message, func(ok bool) {
			done <- ok
		}, p.window).Show()
	})
	return <-done
}

// EditEffort shows the effort sheet for the survey day: which local sites
// were covered and which categories were counted. Checked entries are
// declared on confirm. Returns false if the user cancels.
func (p *Prompter) EditEffort(sv session.Survey) bool {
	done := make(chan bool, 1)

	fyne.Do(func() {
		siteChecks := widget.NewCheckGroup(p.siteNames, nil)

		var catNames []string
		for _, c := range p.categories {
			if !catalog.IsSentinel(c.Name) {
				catNames = append(catNames, c.Name)
			}
		}
		catChecks := widget.NewCheckGroup(catNames, nil)
		catChecks.SetSelected(catNames)

		content := widget.NewForm(
			widget.NewFormItem("Local sites covered", siteChecks),
			widget.NewFormItem("Categories counted", catChecks),
		)

		dlg := dialog.NewCustomConfirm("Effort: "+sv.CountType, "Save", "Cancel",
			content,
			func(ok bool) {
				if !ok {
					done <- false
					return
				}
				ctx := context.Background()
				for _, site := range siteChecks.Selected {
					if err := p.efforts.DeclareLocalSite(ctx, sv, site); err != nil {
						slog.Error("failed to declare effort site", "site", site, "error", err)
					}
				}
				for _, cat := range catChecks.Selected {
					if err := p.efforts.DeclareCategory(ctx, sv, cat); err != nil {
						slog.Error("failed to declare effort category", "category", cat, "error", err)
					}
				}
				done <- true
			}, p.window)
		dlg.Resize(fyne.NewSize(420, 520))
		dlg.Show()
	})

	return <-done
}

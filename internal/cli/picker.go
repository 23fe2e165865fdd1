package cli

import (
	"errors"
	"strings"

	"github.com/manifoldco/promptui"
)

const (
	pickerLabel       = "Select files to review"
	pickerDoneItem    = "Review selected files"
	pickerToggleAll   = "Toggle all files"
	pickerSize        = 20
	pickerFixedItems  = 2
	pickerCheckedMark = "[x] "
	pickerBlankMark   = "[ ] "
)

var errNoSelection = errors.New("no files selected")

// chooseFunc presents items with the cursor at cursor and returns the chosen index.
type chooseFunc func(items []string, cursor int) (int, error)

// pickFilesInteractively lets the user toggle files in a searchable promptui list.
func pickFilesInteractively(paths []string) ([]string, error) {
	return runPicker(paths, func(items []string, cursor int) (int, error) {
		prompt := promptui.Select{
			Label:        pickerLabel,
			Items:        items,
			Size:         pickerSize,
			CursorPos:    cursor,
			HideSelected: true,
			Searcher: func(input string, index int) bool {
				return strings.Contains(strings.ToLower(items[index]), strings.ToLower(input))
			},
		}
		index, _, err := prompt.Run()
		return index, err
	})
}

// runPicker toggles entries until the done item is chosen and returns the
// checked paths in listing order.
func runPicker(paths []string, choose chooseFunc) ([]string, error) {
	checked := make([]bool, len(paths))
	cursor := 0
	for {
		index, err := choose(pickerItems(paths, checked), cursor)
		if err != nil {
			return nil, err
		}
		cursor = index
		switch {
		case index == 0:
			var selected []string
			for position, path := range paths {
				if checked[position] {
					selected = append(selected, path)
				}
			}
			if len(selected) == 0 {
				return nil, errNoSelection
			}
			return selected, nil
		case index == 1:
			target := !allChecked(checked)
			for position := range checked {
				checked[position] = target
			}
		case index-pickerFixedItems < len(paths):
			checked[index-pickerFixedItems] = !checked[index-pickerFixedItems]
		}
	}
}

func pickerItems(paths []string, checked []bool) []string {
	items := make([]string, 0, len(paths)+pickerFixedItems)
	items = append(items, pickerDoneItem, pickerToggleAll)
	for position, path := range paths {
		mark := pickerBlankMark
		if checked[position] {
			mark = pickerCheckedMark
		}
		items = append(items, mark+path)
	}
	return items
}

func allChecked(checked []bool) bool {
	for _, value := range checked {
		if !value {
			return false
		}
	}
	return true
}

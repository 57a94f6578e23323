// Copyright (c) CurioSwitch (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

package tools

import "fmt"

const createDocumentPrompt = `Write about the given topic. Markdown is supported. Use headings
wherever appropriate.`

const suggestionsPrompt = `You are a help writing assistant. Given a piece of writing, please
offer suggestions to improve the piece of writing and describe the change. It is very important
for the edits to contain full sentences instead of just words. Max 5 suggestions.`

// updateDocumentPrompt is the system prompt for rewriting a document based
// on a described change.
func updateDocumentPrompt(current string) string {
	return fmt.Sprintf(`Improve the following contents of the document based on the given prompt.

%s`, current)
}

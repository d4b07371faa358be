package jira

// Issue is the subset of a Jira issue the backport engine reads
type Issue struct {
	ID     string      `json:"id,omitempty"`
	Key    string      `json:"key"`
	Fields IssueFields `json:"fields"`
}

// IssueFields contains the fields of a Jira issue
type IssueFields struct {
	Summary   string          `json:"summary"`
	IssueType *IssueTypeField `json:"issuetype,omitempty"`
	Parent    *ParentField    `json:"parent,omitempty"`
	Project   *ProjectField   `json:"project,omitempty"`
	Assignee  *UserField      `json:"assignee,omitempty"`
}

// IssueTypeField represents a Jira issue type
type IssueTypeField struct {
	Name    string `json:"name"`
	Subtask bool   `json:"subtask"`
}

// ParentField references the parent of a sub-task
type ParentField struct {
	Key string `json:"key"`
}

// ProjectField represents a Jira project
type ProjectField struct {
	Key string `json:"key"`
}

// UserField represents a Jira user
type UserField struct {
	AccountID    string `json:"accountId"`
	DisplayName  string `json:"displayName,omitempty"`
	EmailAddress string `json:"emailAddress,omitempty"`
}

// IsSubtask reports whether the issue is a sub-task
func (i *Issue) IsSubtask() bool {
	return i.Fields.IssueType != nil && i.Fields.IssueType.Subtask
}

// ParentKey returns the parent key of a sub-task, or "" for other issues
func (i *Issue) ParentKey() string {
	if !i.IsSubtask() || i.Fields.Parent == nil {
		return ""
	}
	return i.Fields.Parent.Key
}

// SubtaskRequest describes a sub-task to create
type SubtaskRequest struct {
	ParentKey   string
	Summary     string
	Description Document
	// AssigneeAccountID is optional
	AssigneeAccountID string
}

// ProjectKey returns the project part of an issue key ("PROJ-12" -> "PROJ")
func ProjectKey(issueKey string) string {
	for i := 0; i < len(issueKey); i++ {
		if issueKey[i] == '-' {
			return issueKey[:i]
		}
	}
	return issueKey
}

// Document is an Atlassian Document Format document
type Document struct {
	Type    string `json:"type"`
	Version int    `json:"version"`
	Content []Node `json:"content"`
}

// Node is a block or inline ADF node
type Node struct {
	Type    string `json:"type"`
	Text    string `json:"text,omitempty"`
	Content []Node `json:"content,omitempty"`
	Marks   []Mark `json:"marks,omitempty"`
}

// Mark decorates an inline text node
type Mark struct {
	Type  string            `json:"type"`
	Attrs map[string]string `json:"attrs,omitempty"`
}

// NewDocument builds a document from block nodes
func NewDocument(blocks ...Node) Document {
	return Document{Type: "doc", Version: 1, Content: blocks}
}

// Paragraph builds a paragraph from inline nodes
func Paragraph(inline ...Node) Node {
	return Node{Type: "paragraph", Content: inline}
}

// Text builds a plain text run
func Text(text string) Node {
	return Node{Type: "text", Text: text}
}

// Link builds a text run hyperlinked to href
func Link(text, href string) Node {
	return Node{
		Type:  "text",
		Text:  text,
		Marks: []Mark{{Type: "link", Attrs: map[string]string{"href": href}}},
	}
}

// PlainText flattens a document into its text runs, one line per block
func (d Document) PlainText() string {
	var out []byte
	for i, block := range d.Content {
		if i > 0 {
			out = append(out, '\n')
		}
		for _, inline := range block.Content {
			out = append(out, inline.Text...)
		}
	}
	return string(out)
}

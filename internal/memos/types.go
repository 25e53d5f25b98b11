package memos

import (
	"path"
	"strconv"
	"time"
)

// PageSize is the number of memos requested per page.
const PageSize = 50

// Protocol is the API generation a server speaks.
type Protocol int

const (
	// Legacy servers (before 0.22) page by offset and report seconds.
	Legacy Protocol = iota
	// Current servers page by token and report RFC 3339 times.
	Current
)

func (p Protocol) String() string {
	if p == Current {
		return "current"
	}
	return "legacy"
}

// Session is what Discover learned about the server and the token's user.
type Session struct {
	Protocol Protocol
	Version  string
	// User is the numeric creator id on legacy servers and the resource
	// name ("users/1") on current ones.
	User string
}

// Attachment is a file attached to a memo.
type Attachment struct {
	ID           string
	UID          string
	Name         string
	Filename     string
	ExternalLink string
	Type         string
}

// Record is a memo normalised across protocols.
type Record struct {
	ID          string
	CreatedAt   time.Time
	Content     string
	Attachments []Attachment
}

// Cursor positions a page request. Legacy servers use Offset, current ones Token.
type Cursor struct {
	Offset int
	Token  string
}

// Page is one page of records, newest first, and the cursor of the next one.
type Page struct {
	Records []Record
	Next    Cursor
	// More is false when the server signalled the last page.
	More bool
}

type workspaceProfile struct {
	Version string `json:"version"`
}

type legacyStatus struct {
	Profile struct {
		Version string `json:"version"`
	} `json:"profile"`
}

type authStatus struct {
	Name string `json:"name"`
}

type legacyUser struct {
	ID int64 `json:"id"`
}

type legacyResource struct {
	ID           int64  `json:"id"`
	UID          string `json:"uid"`
	Filename     string `json:"filename"`
	ExternalLink string `json:"externalLink"`
	Type         string `json:"type"`
}

type legacyMemo struct {
	ID           int64            `json:"id"`
	CreatedTs    int64            `json:"createdTs"`
	Content      string           `json:"content"`
	ResourceList []legacyResource `json:"resourceList"`
}

func (m legacyMemo) record() Record {
	r := Record{
		ID:        strconv.FormatInt(m.ID, 10),
		CreatedAt: time.Unix(m.CreatedTs, 0),
		Content:   m.Content,
	}
	for _, res := range m.ResourceList {
		r.Attachments = append(r.Attachments, Attachment{
			ID:           strconv.FormatInt(res.ID, 10),
			UID:          res.UID,
			Filename:     res.Filename,
			ExternalLink: res.ExternalLink,
			Type:         res.Type,
		})
	}
	return r
}

type currentResource struct {
	Name         string `json:"name"`
	UID          string `json:"uid"`
	Filename     string `json:"filename"`
	ExternalLink string `json:"externalLink"`
	Type         string `json:"type"`
}

type currentMemo struct {
	Name       string            `json:"name"`
	UID        string            `json:"uid"`
	CreateTime time.Time         `json:"createTime"`
	Content    string            `json:"content"`
	Resources  []currentResource `json:"resources"`
}

type currentList struct {
	Memos         []currentMemo `json:"memos"`
	NextPageToken string        `json:"nextPageToken"`
}

func (m currentMemo) record() Record {
	r := Record{
		ID:        path.Base(m.Name),
		CreatedAt: m.CreateTime,
		Content:   m.Content,
	}
	for _, res := range m.Resources {
		r.Attachments = append(r.Attachments, Attachment{
			ID:           path.Base(res.Name),
			UID:          res.UID,
			Name:         res.Name,
			Filename:     res.Filename,
			ExternalLink: res.ExternalLink,
			Type:         res.Type,
		})
	}
	return r
}

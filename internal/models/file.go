package models

import (
	"strconv"
	"time"
)

// FileID identifies a stored file. Unique within a listing.
type FileID int64

// String returns the decimal form used in query parameters.
func (id FileID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseFileID parses a decimal file ID as typed by the user.
func ParseFileID(s string) (FileID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return FileID(n), nil
}

// FileEntry is an immutable snapshot of one stored file as reported by the server.
// JSON keys follow the server's field names.
type FileEntry struct {
	ID          FileID    `json:"ID"`
	DisplayName string    `json:"ListName"`
	Extension   string    `json:"Extension"`
	SizeBytes   int64     `json:"Size"`
	ModifiedAt  time.Time `json:"Date"`
}

// FullName is the name the file is saved under on download.
func (f FileEntry) FullName() string {
	return f.DisplayName + f.Extension
}

// FileList is the response body of the list endpoint.
type FileList struct {
	Files []FileEntry `json:"files"`
}

// MessageResponse is the body shape shared by upload, rename, delete, signup
// and error responses.
type MessageResponse struct {
	Message string `json:"message"`
}

// RenameRequest is the body of the rename endpoint. Extension is never user-edited.
type RenameRequest struct {
	ID        FileID `json:"id"`
	Name      string `json:"name"`
	Extension string `json:"extension"`
}

// DeleteRequest is the body of the delete endpoint.
type DeleteRequest struct {
	ID FileID `json:"id"`
}

// Credentials is the body of the login and signup endpoints.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is returned by the login endpoint on success.
type LoginResponse struct {
	Token   string `json:"token"`
	Expire  string `json:"expire,omitempty"`
	Message string `json:"message,omitempty"`
}

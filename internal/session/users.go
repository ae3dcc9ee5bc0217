package session

import (
	"os/user"
	"strconv"
)

// UserLookup resolves a user id to its home directory.
type UserLookup interface {
	HomeDir(uid int) (string, error)
}

// SystemUsers looks users up in the system account database.
type SystemUsers struct{}

// HomeDir returns the home directory of uid.
func (SystemUsers) HomeDir(uid int) (string, error) {
	u, err := user.LookupId(strconv.Itoa(uid))
	if err != nil {
		return "", err
	}
	return u.HomeDir, nil
}

package recordstore

import "gitlab.com/yelinaung/moniclear/internal/logger"

// Owner identifies whose record is addressed: the guest session or a signed-in uid.
type Owner struct {
	UID string
}

// GuestOwner is the owner of the device-local guest record.
func GuestOwner() Owner {
	return Owner{}
}

// UserOwner is the owner of a signed-in identity's remote record.
func UserOwner(uid string) Owner {
	return Owner{UID: uid}
}

// IsGuest reports whether the owner is the guest session.
func (o Owner) IsGuest() bool {
	return o.UID == ""
}

func (o Owner) backend() string {
	if o.IsGuest() {
		return "local"
	}
	return "remote"
}

// String is safe to log.
func (o Owner) String() string {
	return logger.HashIdentity(o.UID)
}

package driver

import "mysql-dbdriver/internal/native"

// Handle is one host-owned database connection slot. The host creates and
// destroys handles; the driver only moves them between states.
//
// A handle holds a native connection exactly when it is connected, and a
// native result set exactly when rows are waiting to be fetched.
type Handle struct {
	// Datasource is "host:port:database".
	Datasource string
	User       string
	Password   string
	// Verbose logs every operation on the handle.
	Verbose bool

	// Row is the template filled by Select and BindRow.
	Row *Row

	driver *Driver
	conn   native.Conn
	result native.ResultSet

	exceptionCode string
	exceptionMsg  string
}

// NewHandle returns a disconnected handle bound to d.
func (d *Driver) NewHandle(datasource, user, password string) *Handle {
	return &Handle{
		Datasource: datasource,
		User:       user,
		Password:   password,
		Row:        NewRow(),
		driver:     d,
	}
}

// Driver returns the driver the handle belongs to, or nil.
func (h *Handle) Driver() *Driver {
	return h.driver
}

// Connected reports whether the handle holds a native connection.
func (h *Handle) Connected() bool {
	return h.conn != nil
}

// FetchingRows reports whether a result set is waiting to be fetched.
func (h *Handle) FetchingRows() bool {
	return h.result != nil
}

// Exception returns the code and message of the last native error. Both are
// empty when the most recent operation raised none.
func (h *Handle) Exception() (code, message string) {
	return h.exceptionCode, h.exceptionMsg
}

func (h *Handle) resetException() {
	h.exceptionCode = ""
	h.exceptionMsg = ""
}

package sshutil

import (
	"strings"

	"github.com/pkg/sftp"
	"github.com/rileyhilliard/rterm/internal/errors"
)

// OpenSFTP starts the sftp subsystem on the connection.
// A server that refuses the subsystem yields ErrSFTPDenied.
func (c *Client) OpenSFTP() (*sftp.Client, error) {
	client, err := sftp.NewClient(c.Client)
	if err != nil {
		if strings.Contains(err.Error(), "subsystem request failed") {
			return nil, errors.WrapWithCode(err, errors.ErrSFTPDenied,
				"SFTP subsystem not available on "+c.Address,
				"The server may have SFTP disabled. Use ssh-exec for file work instead.")
		}
		return nil, errors.WrapWithCode(err, errors.ErrSFTP,
			"Couldn't start SFTP on "+c.Address,
			"Connection may have been closed. Try reconnecting.")
	}
	return client, nil
}

package query

import (
	gocmd "github.com/goliatone/go-command"
	sqlstore "github.com/goliatone/go-provisioning/store/sql"
)

var (
	_ gocmd.Querier[GetInstallationMessage, sqlstore.Installation]     = (*GetInstallationQuery)(nil)
	_ gocmd.Querier[ListInstallationsMessage, []sqlstore.Installation] = (*ListInstallationsQuery)(nil)
	_ gocmd.Querier[GetSessionStatusMessage, SessionStatus]            = (*GetSessionStatusQuery)(nil)
	_ InstallationReader                                               = (*sqlstore.InstallationStore)(nil)
)

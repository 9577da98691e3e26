package sql

import (
	"embed"
)

// Migrations holds the schema DDL, applied in filename order.
//
//go:embed migrations/*.sql
var Migrations embed.FS

//go:embed queries/insert_job.sql
var InsertJob string

//go:embed queries/save_job.sql
var SaveJob string

//go:embed queries/update_progress.sql
var UpdateProgress string

//go:embed queries/select_job.sql
var SelectJob string

//go:embed queries/list_jobs.sql
var ListJobs string

//go:embed queries/insert_entry.sql
var InsertEntry string

//go:embed queries/delete_job_entries.sql
var DeleteJobEntries string

//go:embed queries/count_entries.sql
var CountEntries string

//go:embed queries/list_entries.sql
var ListEntries string

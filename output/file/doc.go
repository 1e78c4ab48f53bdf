// Package file provides the durable log sink: an append-only CSV file with one
// record per flushed reading.
//
// Each record is
//
//	<local time>,<kind>,<room>,<region>,<order>,<priority>,<value %.2f>,<ip>
//
// for example
//
//	2025-06-01 09:30:00,SoilTemp.mIC,1,1,1,15,23.50,192.168.1.20
//
// The file is created on first write and kept open between writes. Set
// OpenPerWrite to reopen it for every record, which tolerates the file being
// rotated underneath the process, and Sync to fsync after each record.
//
// Write errors wrap errors.ErrSinkWrite and are classified transient. The
// sink never retries; a failed record is gone.
package file

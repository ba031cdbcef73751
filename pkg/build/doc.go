/*
Package build implements the Builder component of each provider's
ingest→build→swap pipeline: it streams one raw artifact (EPPO XML inside
a ZIP's extracted entry, or a EU JSON body) into a fresh SQLite database
file, indexes it, and returns the path of a file that is either complete
or does not exist.

Both builders share the same shape:

 1. open the target file with journaling and synchronous writes disabled
    (the file is write-once and discarded on any error, so there is
    nothing to protect against a mid-write crash except starting over);
 2. create tables together with their secondary indexes (the indexes
    exist before the first row is inserted, not built afterwards),
    batch-insert parsed records inside a handful of large transactions,
    then build the full-text index by re-scanning the rows just written;
 3. write dataset metadata (dateexport/version/builtAt for EPPO,
    recordCount/builtAt for EU);
 4. close the write handle and return the path, or, on any error,
    close and unlink the partial file and return the error.

EPPOBuild and EUBuild are free functions rather than methods on a shared
type: the two schemas, parsers, and admission rules have nothing in
common beyond this four-step shape, and forcing a shared interface over
them would hide more than it shares.
*/
package build

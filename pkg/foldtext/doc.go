/*
Package foldtext implements the diacritic fold used at both index time
(Builder) and query time (Store): Unicode normalization form D followed
by stripping combining marks in the range U+0300..U+036F. "café" and
"cafe" fold to the same token; "λεμόνι" and "λεμον" share a prefix after
folding.

The fold is applied identically on both sides of the full-text index so
that SQLite's FTS5 tokenizer never has to know about diacritics: rows
are written pre-folded, and queries are pre-folded before being issued as
an FTS prefix match.
*/
package foldtext

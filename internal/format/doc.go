// Package format parses user format strings such as "MP3 CBR 320" into
// codec descriptors and renders the catalog of formats the host supports.
//
// The grammar is closed: a codec name (one or more words, matched without
// regard to case, longest match first), a mode keyword declared for that
// codec, and a numeric parameter when the mode takes one. A few legacy
// shorthands are accepted: "320" for MP3 CBR 320, "V0" for MP3 VBR 0, "256
// ABR" for MP3 ABR 256, and a bare codec name for codecs with a lossless mode.
package format

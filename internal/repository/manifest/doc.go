// Package manifest persists the application bundle's Info.plist.
//
// File loads the property list with howett.net/plist, exposes string get and
// set-or-insert on top-level keys, and writes it back as an XML plist with
// tab indentation and sorted keys, so repeated saves of the same values are
// byte-identical.
package manifest

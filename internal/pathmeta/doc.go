// Package pathmeta maps between derived-file paths and the identifiers they
// encode.
//
// The study tree is fixed: a session directory (HCD0001305_V1_MR) holds
// MNINonLinear/Results/tfMRI_<TASK>_<DIR>, which holds one .feat directory per
// first-level model, which holds <Kind>Stats directories of cope/varcope
// contrast files. Parse and Layout.Build are inverses over that layout.
package pathmeta

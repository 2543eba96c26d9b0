package mcpserver

// VersionLayoutContract describes the on-disk version layout and the
// lifecycle rules agent consumers must respect when orchestrating cuts,
// activations, and rollbacks.
const VersionLayoutContract = `# Stencil Version Layout Contract

Every project's generated output lives under the projects root:

` + "```" + `
<projectRoot>/
  versions/
    v1.0/   ...snapshot files...
    v1.1/   ...snapshot files...
  current -> versions/v1.1   (atomic indirection)
` + "```" + `

## Rules

- Version directories are named v<major>.<minor> with no leading zeros.
- A snapshot directory is immutable once cut. Never write into one; cut a
  new version instead.
- "current" is the only name you may hard-code when reading the live
  output. It always resolves to exactly one complete snapshot.
- Version numbers progress by change class:
  - initial: first version of a project, always 1.0.
  - edit: manual tweak, minor bump (1.2 -> 1.3).
  - regeneration: full re-capture, major bump (1.3 -> 2.0).
  - rollback: duplicates an older snapshot forward, minor bump, with the
    older version recorded as parent.
- Rollback never deletes history. To undo a bad version, roll back to a
  good one; the bad snapshot stays on disk for inspection.
- A cut requires a finished, non-empty source tree. Hand the tool the
  staging directory produced by the capture pipeline, never a partial one.
`

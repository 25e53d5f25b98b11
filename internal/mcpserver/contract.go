package mcpserver

// VaultLayoutContract describes where the almanac keeps its notes and how
// synced memos are written, so LLM consumers edit the vault consistently.
const VaultLayoutContract = `# Almanac Vault Layout

## Periodic notes

Periodic notes live under the configured periodic folder (default ` + "`" + `PeriodicNotes` + "`" + `):

| Kind      | File name       | Location                                   |
|-----------|-----------------|--------------------------------------------|
| yearly    | ` + "`" + `2024.md` + "`" + `       | ` + "`" + `<folder>/2024/2024.md` + "`" + `                    |
| quarterly | ` + "`" + `2024-Q1.md` + "`" + `    | ` + "`" + `<folder>/2024/Quarterly/2024-Q1.md` + "`" + `       |
| monthly   | ` + "`" + `2024-03.md` + "`" + `    | ` + "`" + `<folder>/2024/Monthly/2024-03.md` + "`" + `         |
| weekly    | ` + "`" + `2024-W10.md` + "`" + `   | ` + "`" + `<folder>/2024/Weekly/2024-W10.md` + "`" + ` (ISO year) |
| daily     | ` + "`" + `2024-03-15.md` + "`" + ` | ` + "`" + `<folder>/2024/Daily/03/2024-03-15.md` + "`" + `     |

Weeks follow ISO-8601: they start on Monday and week 1 holds the first Thursday
of the year. A note moved elsewhere in the vault is still found by its file name.

Do not create periodic notes by hand; use the ` + "`" + `create_periodic_note` + "`" + ` tool so
templates are applied.

## PARA

| Category  | Folder          | Tag        |
|-----------|-----------------|------------|
| projects  | ` + "`" + `1. Projects` + "`" + `   | ` + "`" + `project` + "`" + `  |
| areas     | ` + "`" + `2. Areas` + "`" + `      | ` + "`" + `area` + "`" + `     |
| resources | ` + "`" + `3. Resources` + "`" + `  | ` + "`" + `resource` + "`" + ` |
| archives  | ` + "`" + `4. Archives` + "`" + `   | ` + "`" + `archive` + "`" + `  |

Each item is a folder holding an index note of the same name
(` + "`" + `1. Projects/Garden/Garden.md` + "`" + `) whose frontmatter carries the tag.
Archiving moves the whole folder into the archives.

## Daily records

Memos pulled from a Memos server are merged under the daily-record header
(default ` + "`" + `## Daily Record` + "`" + `) of the daily note for the day they were written:

` + "```" + `markdown
## Daily Record
- 09:12 Morning run #daily-record ^1710461520
- 14:03 lunch with [[Alice]]
- [ ] 18:30 buy milk #daily-record ^1710491400
	second line of the memo
	- ![[42-receipt.png]]
` + "```" + `

Rules:

1. Items ending in ` + "`" + `#daily-record ^<unix>` + "`" + ` belong to the sync. Do not edit them;
   the next sync rewrites them from the server.
2. Items starting with ` + "`" + `HH:MM` + "`" + ` but without the anchor are yours. They keep
   their place in the time order and are never removed.
3. Items without a time are kept at the top of the section.
4. Attachments are downloaded into the attachment folder and embedded by name.
`

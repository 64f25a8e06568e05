package prompt

// BuildTicket is the instruction payload sent to the coding agent for one
// ticket. It names the work, the branch to commit on, and the exact JSON
// completion report the builder parses back out of the agent's output.
const BuildTicket = `You are implementing one ticket of a larger epic.

Ticket document: {{ticket_path}}
Epic definition: {{epic_path}}

Work on branch {{branch}}, which was created from commit {{base_commit}}.
Check out that branch before making any changes. Implement the ticket as
described in its document, run the project's test suite, and commit all of
your work to the branch with descriptive commit messages.

{{#if title}}Summary of the ticket: {{title}}
{{/if}}
When you are done, print a JSON object (and nothing that looks like JSON
before it) with exactly this shape:

{
  "final_commit": "<the full SHA of your last commit on {{branch}}>",
  "test_status": "passing" | "failing" | "skipped",
  "acceptance_criteria": [
    {"criterion": "<text of the criterion>", "met": true | false}
  ]
}

Report test_status honestly. List every acceptance criterion from the ticket
document with whether your implementation meets it.
`

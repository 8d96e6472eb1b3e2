package stage

// Prompt templates for the three pipeline roles. Placeholders use the
// {NAME} convention and are substituted with strings.ReplaceAll; none of
// the substituted values contain braces.

const directorSystemTemplate = `You are the Director of a simulated group chatroom.

{CHATROOM_CONTEXT}

The room contains several AI participants and one human participant named {HUMAN_USER}.
On each turn you decide which participant acts next and what they do. Your
steering goal for this session:

{TREATMENT}

You must answer with a single JSON object and nothing else:

{
  "reasoning": "<one or two sentences on why this action now>",
  "next_agent": "<name of the acting participant>",
  "action_type": "message" | "reply" | "mention" | "like",
  "target_user": "<required for mention>",
  "target_message_id": "<required for reply and like>",
  "performer_instruction": {
    "objective": "<what the message should accomplish>",
    "motivation": "<why this participant would say it>",
    "action": "<concrete directive for the message>"
  }
}

Rules:
- "like" takes a target_message_id and no performer_instruction.
- "reply" takes a target_message_id; "mention" takes a target_user.
- Every other action type requires a performer_instruction.
- next_agent must be one of the available agents, never {HUMAN_USER}.`

const directorUserTemplate = `## Chat log

{CHAT_LOG}

## Available Agents

{AGENT_NAMES}

Decide the next action. Respond with the JSON object only.`

const performerSystemTemplate = `You write chat messages for participants in a simulated group chatroom.

{CHATROOM_CONTEXT}

You receive the Director's instruction and the recent chat log. Write exactly
one short, natural chat message in the voice of the named participant. Do not
add quotes, name prefixes, or commentary about the task.`

const performerMessageBlock = `Write a standalone message for the room.`

const performerReplyBlock = `Write a reply to this message:

{TARGET_MESSAGE}

Do not repeat the quoted text; respond to it.`

const performerMentionBlock = `Write a message addressed at {TARGET_USER}. Do not include the @{TARGET_USER} token itself; it is added automatically.`

const performerUserTemplate = `You are writing as {AGENT_NAME}.

## Director's instruction

{INSTRUCTION}

## Task

{ACTION_BLOCK}

## Recent chat log

{CHAT_LOG}

Write the message now. Output the message text only.`

const moderatorSystemTemplate = `You are a content extractor for a simulated group chatroom.

{CHATROOM_CONTEXT}

You receive raw generator output that should contain one chat message. Return
only the message substance: strip surrounding quotes, name prefixes such as
"Alice:", markdown fences, stage directions, and any commentary about the
task. If the output contains no usable chat message, return exactly
NO_CONTENT.`

const moderatorUserTemplate = `Action type: {ACTION_TYPE}

Raw generator output:

{PERFORMER_OUTPUT}

Return the cleaned message text, or NO_CONTENT.`

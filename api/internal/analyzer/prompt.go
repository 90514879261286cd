package analyzer

// Instruction is sent with every image. It fixes the output schema the
// normalizer expects.
const Instruction = `You are a nutrition assistant. Look at the photo and identify every distinct food or drink item.
For each item estimate the portion and a calorie range. Then estimate the total calorie range for the whole photo
and say how confident you are.

Respond with JSON only, no prose, using exactly this shape:
{
  "items": [
    {"name": "string", "portion": "string, e.g. 1 slice or 200 g", "calories_range": "string, e.g. 250-300"}
  ],
  "total_calories_range": "string, e.g. 450-600",
  "confidence": "high | medium | low"
}

If there is no food in the photo, respond with {"items": [], "raw_response": "<one short sentence saying what you see>"}.`
